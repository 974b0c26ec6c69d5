package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ilclone/internal/il"
	"ilclone/internal/il/ilasm"
	"ilclone/internal/vm"
)

func env(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func TestLoadConfig(t *testing.T) {
	cfg, err := loadConfig(env(nil))
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), cfg)

	path := "a" + string(filepath.ListSeparator) + "b"

	cfg, err = loadConfig(env(map[string]string{"ILCLONE_PATH": path, "ILCLONE_CACHE_SIZE": " 8 "}))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, cfg.SearchPath)
	assert.Equal(t, 8, cfg.CacheSize)

	_, err = loadConfig(env(map[string]string{"ILCLONE_CACHE_SIZE": "-1"}))
	require.Error(t, err)
}

func TestParseArgs(t *testing.T) {
	assert.Equal(t, []vm.Value{int32(4), "x", "99999999999"}, parseArgs([]string{"4", "x", "99999999999"}))
}

func TestClosure(t *testing.T) {
	resolver, err := ilasm.NewResolver(nil, 0)
	require.NoError(t, err)

	resolver.Add(il.NewModule("Lib"))
	resolver.Add(il.NewModule("Mixins", "Lib"))

	app := il.NewModule("App", "Mixins", "Lib")

	modules, err := closure(resolver, app)
	require.NoError(t, err)

	var names []string
	for _, m := range modules {
		names = append(names, m.Name)
	}

	assert.Equal(t, []string{"App", "Mixins", "Lib"}, names)

	_, err = closure(resolver, il.NewModule("Broken", "Nowhere"))
	require.ErrorIs(t, err, ilasm.ErrModuleNotFound)
}
