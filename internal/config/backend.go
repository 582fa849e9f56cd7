package config

// ConfigBackend is the persistent layer under env overrides. macOS keeps
// values in UserDefaults (via the `defaults` CLI); other platforms use a
// JSON file under $XDG_CONFIG_HOME/wordsync.
//
// Getters report ok=false for an absent key. A present key with a value of
// the wrong type is an error.
type ConfigBackend interface {
	GetString(key string) (val string, ok bool, err error)
	GetInt(key string) (val int, ok bool, err error)
	GetBool(key string) (val bool, ok bool, err error)
	SetString(key, val string) error
	SetInt(key string, val int) error
	SetBool(key string, val bool) error
	Delete(key string) error
}
