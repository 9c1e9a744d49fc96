package log

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

//Debug logs a debug message.
func Debug(args ...interface{}) {
	logger.Debug(args...)
}

//Debugf logs a debug message using Printf-style formatting.
func Debugf(str string, args ...interface{}) {
	logger.Debug(fmt.Sprintf(str, args...))
}

//Info logs an info message.
func Info(args ...interface{}) {
	logger.Info(args...)
}

//Infof logs an info message using Printf-style formatting.
func Infof(str string, args ...interface{}) {
	logger.Info(fmt.Sprintf(str, args...))
}

//Warn logs a warning message.
func Warn(args ...interface{}) {
	logger.Warn(args...)
}

//Warnf logs a warning message using Printf-style formatting.
func Warnf(str string, args ...interface{}) {
	logger.Warn(fmt.Sprintf(str, args...))
}

//Error logs an error message.
func Error(args ...interface{}) {
	logger.Error(args...)
}

//Errorf logs an error message using Printf-style formatting.
func Errorf(str string, args ...interface{}) {
	logger.Error(fmt.Sprintf(str, args...))
}

//Err logs msg with err attached as a structured field.
func Err(msg string, err error) {
	logger.WithFields(logrus.Fields{
		"err": err,
	}).Error(msg)
}

//WithFields returns a log entry pre-populated with the given fields,
//for callers (e.g. the transport layer) that want several related
//lines to share context like app_id/mailbox_id/side.
func WithFields(fields logrus.Fields) *logrus.Entry {
	return logger.WithFields(fields)
}
