package config

import (
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/smallbiznis/licensehub/internal/licensekey"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// KeyFormatHolder serves the active license key format. The format is read
// from license.yml when present and reloaded when the file changes. Formats
// that were active earlier stay accepted for verification, so keys issued
// under them keep resolving.
type KeyFormatHolder struct {
	current atomic.Pointer[licensekey.Matcher]
}

// NewStaticKeyFormatHolder returns a holder that never reloads.
func NewStaticKeyFormatHolder(format licensekey.Format, accepted ...licensekey.Format) *KeyFormatHolder {
	holder := &KeyFormatHolder{}
	holder.current.Store(licensekey.NewMatcher(format, accepted...))
	return holder
}

func NewKeyFormatHolder(log *zap.Logger) (*KeyFormatHolder, error) {
	v := viper.New()

	v.SetConfigName("license")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/licensehub/config")
	v.AddConfigPath("/etc/licensehub")
	v.AddConfigPath(".")

	v.SetEnvPrefix("LICENSEHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := licensekey.DefaultFormat()
	v.SetDefault("licenseKey.prefix", defaults.Prefix)
	v.SetDefault("licenseKey.alphabet", defaults.Alphabet)
	v.SetDefault("licenseKey.groups", defaults.Groups)
	v.SetDefault("licenseKey.groupSize", defaults.GroupSize)
	v.SetDefault("licenseKey.separator", defaults.Separator)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	format, accepted, err := readKeyFormat(v)
	if err != nil {
		return nil, err
	}

	holder := NewStaticKeyFormatHolder(format, accepted...)
	log = log.Named("config.license_format")

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, accepted, err := readKeyFormat(v)
		if err != nil {
			log.Warn("invalid license key format ignored", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.Activate(updated, accepted...)
		log.Info("license key format reloaded",
			zap.String("file", e.Name),
			zap.Int("accepted_formats", len(holder.Matcher().Formats())),
		)
	})

	return holder, nil
}

// Format returns the format new keys are generated in.
func (h *KeyFormatHolder) Format() licensekey.Format {
	return h.current.Load().Active()
}

// Matcher recognises keys in every accepted format.
func (h *KeyFormatHolder) Matcher() *licensekey.Matcher {
	return h.current.Load()
}

// Activate makes format the generation format. Formats accepted before the
// call remain accepted alongside the listed ones.
func (h *KeyFormatHolder) Activate(format licensekey.Format, accepted ...licensekey.Format) {
	if prev := h.current.Load(); prev != nil {
		accepted = append(accepted, prev.Formats()...)
	}
	h.current.Store(licensekey.NewMatcher(format, accepted...))
}

// readKeyFormat returns the configured format and the formats verification
// still accepts. The built-in default is always accepted, since every
// install issues keys in it until license.yml says otherwise.
func readKeyFormat(v *viper.Viper) (licensekey.Format, []licensekey.Format, error) {
	var format licensekey.Format
	if err := v.UnmarshalKey("licenseKey", &format); err != nil {
		return licensekey.Format{}, nil, err
	}
	if err := format.Check(); err != nil {
		return licensekey.Format{}, nil, err
	}

	var accepted []licensekey.Format
	if err := v.UnmarshalKey("licenseKey.accepted", &accepted); err != nil {
		return licensekey.Format{}, nil, err
	}
	for _, f := range accepted {
		if err := f.Check(); err != nil {
			return licensekey.Format{}, nil, err
		}
	}
	return format, append(accepted, licensekey.DefaultFormat()), nil
}
