package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/seiforesti/prefstore/lib/serializer"
	"github.com/seiforesti/prefstore/lib/storage"
	"github.com/seiforesti/prefstore/lib/storage/file"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		// Add the word
		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	// Add any remaining text
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// InitConfig initializes configuration from environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("prefstore")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// DefaultDir returns the store directory used when --dir is not given:
// <user config dir>/prefstore, falling back to ./prefstore
func DefaultDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return "prefstore"
	}
	return filepath.Join(base, "prefstore")
}

// GetDir retrieves the configured store directory
func GetDir() string {
	if dir := viper.GetString("dir"); dir != "" {
		return dir
	}
	return DefaultDir()
}

// GetSerializer creates a serializer based on configuration
func GetSerializer() (serializer.ISerializer, error) {
	switch serializer.Format(viper.GetString("serializer")) {
	case serializer.FormatJSON:
		return serializer.NewJSONSerializer(), nil
	case serializer.FormatGOB:
		return serializer.NewGOBSerializer(), nil
	default:
		return nil, fmt.Errorf("invalid serializer %s", viper.GetString("serializer"))
	}
}

// GetBackend opens the file backend at the configured directory
func GetBackend(logger *zap.Logger) (storage.IBackend, error) {
	return file.New(&file.Options{
		Dir:    GetDir(),
		Logger: logger,
	})
}

// GetLogger builds a console logger at the configured level
func GetLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(viper.GetString("log-level"))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %s: %w", viper.GetString("log-level"), err)
	}

	conf := zap.NewProductionConfig()
	conf.Level = zap.NewAtomicLevelAt(level)
	conf.Encoding = "console"
	conf.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return conf.Build()
}
