package internal

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type Config struct {
	Host        string `env:"HOST,default=0.0.0.0" validate:"required"`
	Port        int    `env:"PORT,default=6667" validate:"gt=0,lte=65535"`
	ServerName  string `env:"SERVER_NAME,default=relay" validate:"required"`
	NetworkName string `env:"NETWORK_NAME,default=relaynet" validate:"required"`

	// MotdFilepath is optional; a missing file means clients get 422.
	MotdFilepath string `env:"MOTD_FILEPATH"`

	// ModerationFilepath lists censored words, one per line. Empty
	// disables moderation entirely.
	ModerationFilepath string `env:"MODERATION_FILEPATH"`
	CharReplacement    string `env:"CHARACTER_REPLACEMENT,default=*"`

	PingInterval    time.Duration `env:"PING_INTERVAL,default=60s" validate:"gt=0"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT,default=30s" validate:"gt=0"`
	EventBufferSize int           `env:"EVENT_BUFFER_SIZE,default=256" validate:"gt=0"`
	OutboxSize      int           `env:"OUTBOX_SIZE,default=64" validate:"gt=0"`

	LogLevel string `env:"LOG_LEVEL,default=INFO" validate:"required"`

	// DebugPort exposes the JSON stats endpoint when non-zero.
	DebugPort     int    `env:"DEBUG_PORT"`
	DebugEndpoint string `env:"DEBUG_ENDPOINT,default=/debug/stats"`
	TimelineSize  int    `env:"TIMELINE_SIZE,default=128" validate:"gt=0"`
}

func (c Config) Validate() error {
	return validate.Struct(c)
}

// CharacterRune enforces that the replacement is one single character.
func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
