package orchestrator

import (
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/catalystcommunity/reactorcide/internal/errs"
	"github.com/catalystcommunity/reactorcide/internal/logging"
	"github.com/catalystcommunity/reactorcide/internal/masker"
	"github.com/catalystcommunity/reactorcide/internal/secretref"
	"github.com/catalystcommunity/reactorcide/internal/secretstore"
)

// secretsPasswordEnvVar names the environment variable the secret-reference
// resolver reads the local store's password from, falling back to an
// interactive prompt when unset.
const secretsPasswordEnvVar = "REACTORCIDE_SECRETS_PASSWORD"

// resolveSecretRefs substitutes every ${secret:PATH:KEY} reference (§4.4)
// in env against the encrypted local secret store (§4.5), registering each
// resolved value with m so it's never emitted unmasked. Envs with no
// references are returned unchanged without touching the store or
// prompting for a password.
func resolveSecretRefs(env map[string]string, m *masker.Masker, log *logging.Logger) (map[string]string, error) {
	if !containsSecretRefs(env) {
		return env, nil
	}

	password := os.Getenv(secretsPasswordEnvVar)
	if password == "" {
		var err error
		password, err = promptSecretsPassword()
		if err != nil {
			return nil, errs.Wrap(errs.KindSecretStore, "reading secrets password", err)
		}
	}

	dir, err := secretstore.DefaultBaseDir()
	if err != nil {
		return nil, err
	}
	store := secretstore.New(dir)
	getter := func(path, key string) (string, bool) {
		value, ok, err := store.Get(path, key, password)
		if err != nil {
			log.Error("secret store lookup failed", err, "path", path, "key", key)
			return "", false
		}
		return value, ok
	}

	return secretref.ResolveEnvMap(env, getter, false, m)
}

func containsSecretRefs(env map[string]string) bool {
	for _, v := range env {
		if len(secretref.FindAll(v)) > 0 {
			return true
		}
	}
	return false
}

func promptSecretsPassword() (string, error) {
	fmt.Fprint(os.Stderr, "Secrets password: ")
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(pw), nil
}
