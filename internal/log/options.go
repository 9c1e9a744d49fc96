package log

import "errors"

const (
	//LevelDebug debug level logging, all messages outputted
	LevelDebug = "DEBUG"
	//LevelInfo info level logging, no debug information, a lot of info
	LevelInfo = "INFO"
	//LevelWarn warning level logging, only recovered errors, and fatal errors
	LevelWarn = "WARN"
	//LevelError error level logging, no other information other then fatal errors
	LevelError = "ERROR"
)

//Options holds the configuration settings for the logging facilities.
//JSON serializable so it can be loaded from a config file alongside
//the rest of Options.
type Options struct {
	//Path holds the file path to write logs too. If empty, logs are
	//written to standard error.
	Path string `json:"path"`

	//Level sets the minimum severity that gets written.
	//One of DEBUG, INFO, WARN, ERROR. Defaults to INFO.
	Level string `json:"level"`

	//Usage enables logging of per-connection/per-request activity.
	Usage bool `json:"usage"`

	//BlurSeconds rounds timestamps attached to usage log lines down
	//to this many seconds, to reduce the precision of logged access
	//times. Zero disables blurring.
	BlurSeconds uint `json:"blurSeconds"`

	//ShowAddress enables logging of remote addresses in usage lines.
	ShowAddress bool `json:"showRemoteAddresses"`
}

//DefaultOptions holds the default logging configuration.
var DefaultOptions = Options{
	Path:        "",
	Level:       LevelInfo,
	Usage:       true,
	BlurSeconds: 0,
	ShowAddress: true,
}

//ErrOptionLevel is returned when the Level field is not a recognized value.
var ErrOptionLevel = errors.New("invalid logging level option provided")

//Equals returns true if this object deep-equals the supplied one.
func (o Options) Equals(opt Options) bool {
	return o.Path == opt.Path &&
		o.Level == opt.Level &&
		o.Usage == opt.Usage &&
		o.BlurSeconds == opt.BlurSeconds &&
		o.ShowAddress == opt.ShowAddress
}

//Verify checks the Options fields for validity, returning an error
//describing the first problem encountered.
func (o Options) Verify() error {
	switch o.Level {
	case LevelDebug, LevelInfo, LevelWarn, LevelError:
	default:
		return ErrOptionLevel
	}
	return nil
}

//MergeFrom combines fields from opt into o, then verifies the result.
//Path and Level are only overridden when non-empty; Usage, BlurSeconds
//and ShowAddress are always copied from opt.
func (o *Options) MergeFrom(opt Options) error {
	if opt.Path != "" {
		o.Path = opt.Path
	}
	if opt.Level != "" {
		o.Level = opt.Level
	}
	o.Usage = opt.Usage
	o.BlurSeconds = opt.BlurSeconds
	o.ShowAddress = opt.ShowAddress

	return o.Verify()
}

//CombineOptions merges a variable number of Options onto DefaultOptions
//in order, verifying the final result.
func CombineOptions(opts ...Options) (Options, error) {
	res := DefaultOptions

	for _, opt := range opts {
		if err := res.MergeFrom(opt); err != nil {
			return res, err
		}
	}

	return res, nil
}
