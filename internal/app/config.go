package app

// Config holds application configuration
type Config struct {
	SpecFiles   []string // category definition files (YAML or JSON)
	REFile      string   // Reserved Expansion Field definition
	SPFile      string   // Special Purpose Field definition
	Output      string   // export destination, empty writes to stdout
	Lenient     bool     // clamp oversized extended subfields instead of failing
	Verbose     bool
	ShowVersion bool
}
