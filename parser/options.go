package parser

const (
	// MFT records are always treated as 1kb.
	RecordSize = 1024

	// Records 0-23 hold the metafiles ($MFT, $MFTMirr, $LogFile
	// ...) and reserved slots. They are never user files.
	FirstUserRecord = 24

	DefaultMaxContentSize = 100 * 1024 * 1024
	DefaultMaxRuns        = 4096
)

type Options struct {
	// Trim non-resident content to the actual size declared in the
	// attribute header. When false the content is the full allocated
	// clusters.
	ClampToActualSize bool

	// Trim resident content to the declared content size. When false
	// the content runs to the end of the attribute, including any
	// alignment padding.
	TrimResidentContent bool

	// Apply the update sequence array to each record before
	// decoding.
	ApplyFixups bool

	// Records without the FILE signature are treated as empty slots
	// and not reported.
	RequireSignature bool

	// Maximum bytes recovered from a single non-resident stream.
	MaxContentSize int64

	// Maximum number of runs decoded from a single runlist.
	MaxRuns int

	// Number of goroutines decoding records. Output order is
	// always record order.
	Workers int
}

func GetDefaultOptions() Options {
	return Options{
		ClampToActualSize: true,
		ApplyFixups:       true,
		RequireSignature:  true,
		MaxContentSize:    DefaultMaxContentSize,
		MaxRuns:           DefaultMaxRuns,
		Workers:           1,
	}
}
