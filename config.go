package columnar

import (
	"encoding/base64"

	"github.com/sirupsen/logrus"
)

// Encoder is the pluggable BASE64 text wrapper over the BINARY wire format:
// Encode/Decode never see ECS structure, only bytes.
type Encoder interface {
	Encode([]byte) string
	Decode(string) ([]byte, error)
}

// base64Encoder is the default Encoder: stdlib encoding/base64, standard
// alphabet with padding. A text-wrapper this thin gains nothing from a
// third-party dependency.
type base64Encoder struct{}

func (base64Encoder) Encode(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

func (base64Encoder) Decode(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}

// StoreEvents holds hooks fired around store lifecycle, useful for
// host-side instrumentation.
type StoreEvents struct {
	OnResize func(schemaType string, oldSize, newSize int)
}

// Config holds global, package-level configuration: the pluggable
// Validator/Encoder boundary, the diagnostic logger, and store lifecycle
// hooks.
var Config config = config{
	encoder: base64Encoder{},
	log:     logrus.StandardLogger(),
}

type config struct {
	encoder     Encoder
	log         *logrus.Logger
	storeEvents StoreEvents
}

// SetEncoder overrides the BASE64 collaborator.
func (c *config) SetEncoder(e Encoder) {
	c.encoder = e
}

// SetLogger overrides the diagnostic logger. Pass a logger at
// logrus.PanicLevel (or a no-op io.Discard-backed logger) to silence
// diagnostics entirely.
func (c *config) SetLogger(l *logrus.Logger) {
	c.log = l
}

// SetStoreEvents configures store resize callbacks.
func (c *config) SetStoreEvents(se StoreEvents) {
	c.storeEvents = se
}

func (c *config) logger() *logrus.Logger {
	if c.log == nil {
		return logrus.StandardLogger()
	}
	return c.log
}
