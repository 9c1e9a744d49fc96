package ws

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chris-pikul/wormhole-rendezvous/internal/log"
)

func prepLog(c *Client) *logrus.Entry {
	l := log.Get().WithField("usage", "ws")
	if c.App != nil {
		l = l.WithField("app_id", c.App.ID)
	}
	if c.Side != "" {
		l = l.WithField("side", c.Side)
	}
	if c.server.opts.Logging.ShowAddress && c.conn != nil {
		l = l.WithField("remote-addr", c.conn.RemoteAddr().String())
	}
	if bs := log.BlurSeconds(); bs > 0 {
		l = l.WithTime(time.Now().Truncate(time.Duration(bs) * time.Second))
	}
	return l
}

//LogErr logs msg with err attached, gated by the Usage logging option.
func LogErr(c *Client, msg string, err error) {
	if !c.server.opts.Logging.Usage {
		return
	}
	prepLog(c).WithError(err).Error(msg)
}

//LogInfof logs a usage-gated informational line for c.
func LogInfof(c *Client, format string, args ...interface{}) {
	if !c.server.opts.Logging.Usage {
		return
	}
	prepLog(c).Infof(format, args...)
}
