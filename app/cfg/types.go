package cfg

type Cfg struct {
	// Database configuration
	DBPath string

	// Application configuration
	Port             string
	APIAccessKey     string
	SeedsFile        string
	MinimalInterval  int // minutes
	DefaultInterval  int // minutes
	MonitorTimeout   int // seconds
	SendTimeout      int // seconds
	ErrorLoggingChat int64
	WebhookURL       string
	ExtractContent   bool
	FloodRate        float64
	FloodBurst       int

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
