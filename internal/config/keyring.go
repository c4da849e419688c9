/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
)

// KeyringService is the OS keyring service name API keys are stored under.
const KeyringService = "goplaytranslator"

// ErrNoAPIKey is returned when neither the environment nor the keyring holds a key.
var ErrNoAPIKey = errors.New("no API key configured")

// SecretStore abstracts the keyring so tests can stub it.
type SecretStore interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

type osKeyring struct{}

func (osKeyring) Get(service, key string) (string, error) { return keyring.Get(service, key) }
func (osKeyring) Set(service, key, value string) error { return keyring.Set(service, key, value) }
func (osKeyring) Delete(service, key string) error { return keyring.Delete(service, key) }

var secretStore SecretStore = osKeyring{}

// apiKeyEnv lists the environment variables consulted per provider, in order.
var apiKeyEnv = map[string][]string{
	"gemini": {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
	"openai": {"OPENAI_API_KEY"},
}

// APIKey resolves the key for provider from the environment (including values
// loaded from .env) and falls back to the OS keyring.
func APIKey(provider string) (string, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	envs, ok := apiKeyEnv[provider]
	if !ok {
		return "", fmt.Errorf("unknown provider %q", provider)
	}
	for _, name := range envs {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return v, nil
		}
	}
	v, err := secretStore.Get(KeyringService, provider)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", fmt.Errorf("%w for %s: set %s or run `goplaytranslator auth set-key %s`", ErrNoAPIKey, provider, envs[0], provider)
		}
		return "", fmt.Errorf("read keyring: %w", err)
	}
	if strings.TrimSpace(v) == "" {
		return "", fmt.Errorf("%w for %s", ErrNoAPIKey, provider)
	}
	return v, nil
}

// StoreAPIKey persists key for provider in the OS keyring.
func StoreAPIKey(provider, key string) error {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if _, ok := apiKeyEnv[provider]; !ok {
		return fmt.Errorf("unknown provider %q", provider)
	}
	if strings.TrimSpace(key) == "" {
		return errors.New("empty API key")
	}
	return secretStore.Set(KeyringService, provider, strings.TrimSpace(key))
}

// DeleteAPIKey removes the stored key; a missing entry is not an error.
func DeleteAPIKey(provider string) error {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if err := secretStore.Delete(KeyringService, provider); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return err
	}
	return nil
}
