// Package config loads and validates the settings a rendezvous server
// process needs to start: listen address, database file, welcome
// advertisement, app-id allow-list, pruning cadence, usage-log
// blurring, and the logging sub-options. Settings cascade CLI flags
// over a JSON file over DefaultOptions, the same layering the teacher
// repo uses for its relay/transit configuration.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"

	"github.com/urfave/cli"

	"github.com/chris-pikul/wormhole-rendezvous/internal/log"
)

//Options is a JSON-serializable configuration object for a single
//rendezvous server process.
type Options struct {
	//Host/Port are the listen address for the websocket transport.
	Host string `json:"host"`
	Port uint   `json:"port"`

	//WelcomeMOTD/WelcomeError/AdvertisedVersion populate the welcome
	//blob sent to every newly connected client.
	WelcomeMOTD       string `json:"welcomeMOTD"`
	WelcomeError      string `json:"welcomeError"`
	AdvertisedVersion string `json:"advertisedVersion"`

	//DBFile is the SQLite database path, or ":memory:" for an
	//ephemeral store.
	DBFile string `json:"dbFile"`

	//AllowList enables the List command; when false, List always
	//replies with an empty nameplate set.
	AllowList bool `json:"allowList"`

	//AppIDs restricts which app_id values Bind will accept. An empty
	//slice allows any app_id, matching the teacher's single-app
	//behavior.
	AppIDs []string `json:"appIDs"`

	//CleaningIntervalMinutes is how often the prune timer runs.
	CleaningIntervalMinutes uint `json:"cleaningIntervalMinutes"`

	//ChannelExpirationHours is checked by Verify to be longer than
	//CleaningIntervalMinutes. It does not change the prune horizon,
	//which is the rendezvous engine's fixed three-day expiration.
	ChannelExpirationHours uint `json:"channelExpirationHours"`

	//BlurUsageSeconds quantizes usage-log "started" timestamps down to
	//this many seconds. Zero disables blurring and implies per-request
	//logging (mirrors the blur_usage/log_requests coupling).
	BlurUsageSeconds int64 `json:"blurUsageSeconds"`

	//Logging holds the logging sub-options.
	Logging log.Options `json:"logging"`
}

//DefaultOptions holds the preset defaults for a server, matching the
//constants named in the rendezvous engine (CHANNEL_EXPIRATION_TIME = 3
//days, EXPIRATION_CHECK_PERIOD = 2 hours).
var DefaultOptions = Options{
	Host:                    "",
	Port:                    4000,
	DBFile:                  "./wormhole-rendezvous.db",
	AllowList:               true,
	CleaningIntervalMinutes: 120,
	ChannelExpirationHours:  72,
	BlurUsageSeconds:        0,

	Logging: log.DefaultOptions,
}

//ErrCleaningInterval is returned when the cleaning cadence is not
//shorter than the expiration horizon it is meant to enforce.
var ErrCleaningInterval = errors.New("config: cleaning interval must be shorter than channel expiration")

//Equals returns true if opt deep-equals o.
func (o Options) Equals(opt Options) bool {
	if o.Host != opt.Host ||
		o.Port != opt.Port ||
		o.WelcomeMOTD != opt.WelcomeMOTD ||
		o.WelcomeError != opt.WelcomeError ||
		o.AdvertisedVersion != opt.AdvertisedVersion ||
		o.DBFile != opt.DBFile ||
		o.AllowList != opt.AllowList ||
		o.CleaningIntervalMinutes != opt.CleaningIntervalMinutes ||
		o.ChannelExpirationHours != opt.ChannelExpirationHours ||
		o.BlurUsageSeconds != opt.BlurUsageSeconds ||
		!o.Logging.Equals(opt.Logging) ||
		len(o.AppIDs) != len(opt.AppIDs) {
		return false
	}
	for i, id := range o.AppIDs {
		if opt.AppIDs[i] != id {
			return false
		}
	}
	return true
}

//Verify checks Options for internal consistency.
func (o Options) Verify() error {
	if o.CleaningIntervalMinutes*60 >= o.ChannelExpirationHours*3600 {
		return ErrCleaningInterval
	}
	return o.Logging.Verify()
}

//MergeFrom combines opt's fields onto o, then verifies the result.
func (o *Options) MergeFrom(opt Options) error {
	o.Host = opt.Host
	o.Port = opt.Port
	o.WelcomeMOTD = opt.WelcomeMOTD
	o.WelcomeError = opt.WelcomeError
	o.AdvertisedVersion = opt.AdvertisedVersion
	o.DBFile = opt.DBFile
	o.AllowList = opt.AllowList
	o.AppIDs = opt.AppIDs
	o.CleaningIntervalMinutes = opt.CleaningIntervalMinutes
	o.ChannelExpirationHours = opt.ChannelExpirationHours
	o.BlurUsageSeconds = opt.BlurUsageSeconds

	if err := o.Logging.MergeFrom(opt.Logging); err != nil {
		return err
	}
	return o.Verify()
}

//ReadOptionsFromFile loads Options from a JSON file, starting from
//DefaultOptions so unset fields keep their defaults.
func ReadOptionsFromFile(filename string) (Options, error) {
	res := DefaultOptions

	file, err := ioutil.ReadFile(filename)
	if err != nil {
		return res, err
	}
	if err := json.Unmarshal(file, &res); err != nil {
		return res, err
	}
	return res, res.Verify()
}

//NewOptions compiles Options from defaults, an optional JSON file, and
//CLI flags, in that cascading order, then verifies the result.
func NewOptions(defaults *Options, filename string, ctx *cli.Context) (Options, error) {
	res := DefaultOptions
	if defaults != nil {
		res = *defaults
	}

	if len(filename) > 0 {
		fmt.Printf("reading configuration from '%s'\n", filename)
		file, err := ReadOptionsFromFile(filename)
		if err != nil {
			return res, err
		}
		if err := res.MergeFrom(file); err != nil {
			return res, err
		}
	}

	if ctx != nil {
		applyCLIOptions(ctx, &res)
	}

	return res, res.Verify()
}

//applyCLIOptions overlays the flags presented on ctx onto opts. Skipped
//entirely when --config was used, so a config file's settings aren't
//silently clobbered by flag defaults.
func applyCLIOptions(c *cli.Context, opts *Options) {
	if c == nil || opts == nil {
		return
	}
	if c.String("config") != "" {
		return
	}

	opts.Host = c.String("host")
	opts.Port = c.Uint("port")
	opts.DBFile = c.String("db")

	if c.Bool("no-list") {
		opts.AllowList = false
	}
	if v := c.String("advert-version"); v != "" {
		opts.AdvertisedVersion = v
	}
	if apps := c.StringSlice("app"); len(apps) > 0 {
		opts.AppIDs = apps
	}
	if v := c.Uint("cleaning"); v > 0 {
		opts.CleaningIntervalMinutes = v
	}
	if v := c.Uint("channel-exp"); v > 0 {
		opts.ChannelExpirationHours = v
	}
	if v := c.Int64("blur-usage"); v > 0 {
		opts.BlurUsageSeconds = v
	}

	opts.Logging.Path = c.String("log")
	if v := c.String("log-level"); v != "" {
		opts.Logging.Level = v
	}
	opts.Logging.BlurSeconds = c.Uint("log-blur")
}

//AppAllowed reports whether appID may bind, given the configured
//allow-list. An empty allow-list permits every app_id.
func (o Options) AppAllowed(appID string) bool {
	if len(o.AppIDs) == 0 {
		return true
	}
	for _, id := range o.AppIDs {
		if id == appID {
			return true
		}
	}
	return false
}
