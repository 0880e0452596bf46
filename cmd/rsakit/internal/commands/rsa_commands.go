package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bastionzero/rsakit"
)

// RSACommandHandler handles encryption and signatures with an RSA key
type RSACommandHandler struct {
	app *App
}

func (h *RSACommandHandler) engine(cmd *cobra.Command) (*rsakit.Engine, error) {
	flags := cmd.Flags()
	keyPath, _ := flags.GetString("key")
	if keyPath == "" {
		return nil, fmt.Errorf("--key is required")
	}
	keyFormat, _ := flags.GetString("key-format")
	password, _ := flags.GetString("password")

	key, format, err := readKey(cmd, keyPath, keyFormat, password)
	if err != nil {
		return nil, err
	}
	opts, err := h.app.engineOptions(cmd)
	if err != nil {
		return nil, err
	}
	h.app.Logger.Debug("loaded key", "format", format, "bits", key.BitLen(),
		"encryption", opts.EncryptionMode, "signature", opts.SignatureMode, "hash", opts.Hash)

	return rsakit.NewEngine(key, opts)
}

func (h *RSACommandHandler) readMessage(cmd *cobra.Command) (input []byte, outPath string, err error) {
	inPath, _ := cmd.Flags().GetString("in")
	outPath, _ = cmd.Flags().GetString("out")
	input, err = readInput(cmd, inPath)
	return input, outPath, err
}

// EncryptCmd encrypts the input with the public half of the key
func (h *RSACommandHandler) EncryptCmd(cmd *cobra.Command, _ []string) error {
	engine, err := h.engine(cmd)
	if err != nil {
		return err
	}
	plaintext, outPath, err := h.readMessage(cmd)
	if err != nil {
		return err
	}

	ciphertext, err := engine.Encrypt(plaintext)
	if err != nil {
		return err
	}
	h.app.Logger.Info("encrypted", "plaintext_bytes", len(plaintext), "ciphertext_bytes", len(ciphertext))
	return writeOutput(cmd, outPath, ciphertext)
}

// DecryptCmd decrypts the input with a private key
func (h *RSACommandHandler) DecryptCmd(cmd *cobra.Command, _ []string) error {
	engine, err := h.engine(cmd)
	if err != nil {
		return err
	}
	ciphertext, outPath, err := h.readMessage(cmd)
	if err != nil {
		return err
	}

	plaintext, err := engine.Decrypt(ciphertext)
	if err != nil {
		return err
	}
	h.app.Logger.Info("decrypted", "ciphertext_bytes", len(ciphertext), "plaintext_bytes", len(plaintext))
	return writeOutput(cmd, outPath, plaintext)
}

// SignCmd signs the input with a private key
func (h *RSACommandHandler) SignCmd(cmd *cobra.Command, _ []string) error {
	engine, err := h.engine(cmd)
	if err != nil {
		return err
	}
	message, outPath, err := h.readMessage(cmd)
	if err != nil {
		return err
	}

	signature, err := engine.Sign(message)
	if err != nil {
		return err
	}
	h.app.Logger.Info("signed", "message_bytes", len(message))
	return writeOutput(cmd, outPath, signature)
}

// VerifyCmd checks a signature over the input and fails when it does not match
func (h *RSACommandHandler) VerifyCmd(cmd *cobra.Command, _ []string) error {
	engine, err := h.engine(cmd)
	if err != nil {
		return err
	}
	message, _, err := h.readMessage(cmd)
	if err != nil {
		return err
	}
	sigPath, _ := cmd.Flags().GetString("signature-file")
	if sigPath == "" {
		return fmt.Errorf("--signature-file is required")
	}
	signature, err := readInput(cmd, sigPath)
	if err != nil {
		return err
	}

	if err := engine.Verify(message, signature); err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), "Signature is valid")
	return err
}

func initRSACommands(rootCmd *cobra.Command, app *App) {
	handler := &RSACommandHandler{app: app}

	addKeyFlags := func(cmd *cobra.Command, withOut bool) {
		cmd.Flags().String("key", "", "Key file")
		cmd.Flags().String("key-format", "", "Key format; detected when empty")
		cmd.Flags().String("password", "", "Password of the key")
		cmd.Flags().String("in", "", "Input file (default stdin)")
		if withOut {
			cmd.Flags().String("out", "", "Output file (default stdout)")
		}
	}

	encryptCmd := &cobra.Command{
		Use:   "encrypt",
		Short: "Encrypt with an RSA public key",
		Args:  cobra.NoArgs,
		RunE:  handler.EncryptCmd,
	}
	addKeyFlags(encryptCmd, true)
	addEngineFlags(encryptCmd, true, false)
	rootCmd.AddCommand(encryptCmd)

	decryptCmd := &cobra.Command{
		Use:   "decrypt",
		Short: "Decrypt with an RSA private key",
		Args:  cobra.NoArgs,
		RunE:  handler.DecryptCmd,
	}
	addKeyFlags(decryptCmd, true)
	addEngineFlags(decryptCmd, true, false)
	rootCmd.AddCommand(decryptCmd)

	signCmd := &cobra.Command{
		Use:   "sign",
		Short: "Sign with an RSA private key",
		Args:  cobra.NoArgs,
		RunE:  handler.SignCmd,
	}
	addKeyFlags(signCmd, true)
	addEngineFlags(signCmd, false, true)
	rootCmd.AddCommand(signCmd)

	verifyCmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify an RSA signature",
		Args:  cobra.NoArgs,
		RunE:  handler.VerifyCmd,
	}
	addKeyFlags(verifyCmd, false)
	verifyCmd.Flags().String("signature-file", "", "Signature file")
	addEngineFlags(verifyCmd, false, true)
	rootCmd.AddCommand(verifyCmd)
}
