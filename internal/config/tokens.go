package config

import "sync"

const (
	EnvGitLabToken           = "GSC_GITLAB_TOKEN"
	EnvSelfHostedGitLabToken = "GSC_SELF_HOSTED_GITLAB_TOKEN"

	SourceNone    = "none"
	SourceEnv     = "env"
	SourceKeyring = "keyring"
	SourceFile    = "file"
)

var tokenNames = []string{EnvGitLabToken, EnvSelfHostedGitLabToken}

// Tokens holds access tokens by name. It is shared process state: accessors
// read it on every call so that rotated tokens are seen immediately.
type Tokens struct {
	mu      sync.RWMutex
	values  map[string]string
	sources map[string]string
}

func NewTokens() *Tokens {
	return &Tokens{values: map[string]string{}, sources: map[string]string{}}
}

func (tokens *Tokens) Get(name string) string {
	tokens.mu.RLock()
	defer tokens.mu.RUnlock()

	return tokens.values[name]
}

func (tokens *Tokens) Source(name string) string {
	tokens.mu.RLock()
	defer tokens.mu.RUnlock()

	if source, ok := tokens.sources[name]; ok && tokens.values[name] != "" {
		return source
	}

	return SourceNone
}

func (tokens *Tokens) Set(name string, value string, source string) {
	tokens.mu.Lock()
	defer tokens.mu.Unlock()

	if value == "" {
		delete(tokens.values, name)
		delete(tokens.sources, name)
		return
	}

	tokens.values[name] = value
	tokens.sources[name] = source
}

func (tokens *Tokens) Accessor(name string) func() string {
	return func() string {
		return tokens.Get(name)
	}
}
