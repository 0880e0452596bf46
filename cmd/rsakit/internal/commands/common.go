package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bastionzero/rsakit"
	"github.com/bastionzero/rsakit/keyformat"
)

// readInput reads path, or standard input when path is empty or "-"
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// writeOutput writes data to path, or standard output when path is empty or "-"
func writeOutput(cmd *cobra.Command, path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(filepath.Clean(path), data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// readKey loads a key from path. An empty format name detects the format
func readKey(cmd *cobra.Command, path, formatName, password string) (*rsakit.Key, keyformat.Format, error) {
	data, err := readInput(cmd, path)
	if err != nil {
		return nil, 0, err
	}
	opts := &keyformat.Options{Password: []byte(password)}

	if formatName == "" {
		return keyformat.ParseAny(data, opts)
	}

	format, err := keyformat.ParseFormat(formatName)
	if err != nil {
		return nil, 0, err
	}
	key, err := keyformat.Parse(data, format, opts)
	return key, format, err
}

// engineOptions starts from the configured engine settings and applies any engine flags the
// user set on cmd
func (app *App) engineOptions(cmd *cobra.Command) (*rsakit.Options, error) {
	settings := app.Config.Engine
	flags := cmd.Flags()

	overrides := map[string]*string{
		"encryption": &settings.Encryption,
		"signature":  &settings.Signature,
		"hash":       &settings.Hash,
		"mgf-hash":   &settings.MGFHash,
		"label":      &settings.Label,
	}
	for name, target := range overrides {
		if flags.Lookup(name) == nil || !flags.Changed(name) {
			continue
		}
		value, err := flags.GetString(name)
		if err != nil {
			return nil, fmt.Errorf("invalid %s flag: %w", name, err)
		}
		*target = value
	}
	if flags.Lookup("salt-length") != nil && flags.Changed("salt-length") {
		saltLength, err := flags.GetInt("salt-length")
		if err != nil {
			return nil, fmt.Errorf("invalid salt-length flag: %w", err)
		}
		settings.SaltLength = saltLength
	}

	return settings.Options()
}

func addEngineFlags(cmd *cobra.Command, encryption, signature bool) {
	if encryption {
		cmd.Flags().String("encryption", "", "Encryption padding: oaep, pkcs1 or none")
		cmd.Flags().String("label", "", "OAEP label")
	}
	if signature {
		cmd.Flags().String("signature", "", "Signature padding: pss or pkcs1")
		cmd.Flags().Int("salt-length", 0, "PSS salt length in bytes; 0 matches the hash, -1 means no salt")
	}
	cmd.Flags().String("hash", "", "Hash: md2, md5, sha1, sha224, sha256, sha384 or sha512")
	cmd.Flags().String("mgf-hash", "", "Hash for MGF1")
}
