// Package env loads environment variables from dotenv files, with
// support for Ansible Vault encrypted files holding the CI and GitHub
// tokens referenced from reml.conf.
package env

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sosedoff/ansible-vault-go"
	"golang.org/x/term"
)

// Loader defines the interface for loading environment variables.
type Loader interface {
	Load(path, vaultPassword string) error
}

// VaultDecrypter decrypts Ansible Vault encrypted content.
type VaultDecrypter interface {
	Decrypt(content, password string) (string, error)
}

// ansibleDecrypter implements VaultDecrypter using ansible-vault-go.
type ansibleDecrypter struct{}

func (ansibleDecrypter) Decrypt(content, password string) (string, error) {
	return vault.Decrypt(content, password)
}

// DefaultLoader implements the Loader interface using godotenv.
type DefaultLoader struct {
	vaultDecrypter VaultDecrypter
}

// NewLoader creates a new environment loader with default implementations.
func NewLoader() Loader {
	return &DefaultLoader{vaultDecrypter: ansibleDecrypter{}}
}

// Load loads environment variables from a file. Files with a .vault
// suffix are decrypted first.
func (l *DefaultLoader) Load(path, vaultPassword string) error {
	if path == "" {
		return nil
	}

	if strings.HasSuffix(path, ".vault") {
		return l.loadVaultFile(path, vaultPassword)
	}

	return godotenv.Load(path)
}

// loadVaultFile decrypts an Ansible Vault file and loads the dotenv
// content it holds.
func (l *DefaultLoader) loadVaultFile(path, password string) error {
	password, err := resolveVaultPassword(password)
	if err != nil {
		return err
	}
	if password == "" {
		return fmt.Errorf("a vault password is required to load %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read vault file: %w", err)
	}

	decrypted, err := l.vaultDecrypter.Decrypt(string(data), password)
	if err != nil {
		return fmt.Errorf("failed to decrypt %s: %w", path, err)
	}

	return setEnvironmentVariables(decrypted)
}

// resolveVaultPassword determines the password to use for decryption:
// the -vault-password flag, then VAULT_PASSWORD, then a prompt.
func resolveVaultPassword(password string) (string, error) {
	if password != "" {
		return password, nil
	}

	if envPwd := os.Getenv("VAULT_PASSWORD"); envPwd != "" {
		return envPwd, nil
	}

	promptedPwd, err := promptVaultPassword()
	if err != nil {
		return "", fmt.Errorf("failed to get vault password: %w", err)
	}
	return promptedPwd, nil
}

// setEnvironmentVariables parses and sets environment variables from
// decrypted content.
func setEnvironmentVariables(decrypted string) error {
	envMap, err := godotenv.Unmarshal(decrypted)
	if err != nil {
		return fmt.Errorf("environment unmarshaling failed: %w", err)
	}

	for k, v := range envMap {
		if err := os.Setenv(k, v); err != nil {
			return fmt.Errorf("failed to set environment variable %s: %w", k, err)
		}
	}

	return nil
}

// promptVaultPassword prompts the user for a vault password.
func promptVaultPassword() (string, error) {
	fmt.Print("Enter vault password: ")

	if password, err := term.ReadPassword(int(syscall.Stdin)); err == nil {
		fmt.Println()
		return string(password), nil
	}

	// Fallback to standard input if term.ReadPassword fails.
	reader := bufio.NewReader(os.Stdin)
	password, err := reader.ReadBytes('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	return strings.TrimSpace(string(password)), nil
}
