package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

// executeCommand executes a cobra command and returns its output and the
// code passed to exit, or -1 when exit was not called.
func executeCommand(ctx context.Context, root *cobra.Command, args ...string) (out string, code int, err error) {
	resetFlags(root)
	code = -1
	oldExit := exit
	exit = func(c int) {
		code = c
		panic(fmt.Sprintf("exit-%d", c))
	}
	defer func() { exit = oldExit }()

	b := new(bytes.Buffer)
	defer func() {
		if r := recover(); r != nil {
			if s, ok := r.(string); ok && strings.HasPrefix(s, "exit-") {
				out = b.String()
				return
			}
			panic(r)
		}
	}()

	root.SetArgs(args)
	root.SetOut(b)
	root.SetErr(b)
	root.SetIn(bytes.NewBufferString(""))
	err = root.ExecuteContext(ctx)
	return b.String(), code, err
}

// resetFlags resets all flags to their default values.
func resetFlags(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Changed {
			f.Value.Set(f.DefValue)
			f.Changed = false
		}
	})
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// isolate points the store at a temporary database, disables the metrics
// server and clears any overrides when the test ends.
func isolate(t *testing.T) string {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "test.db")
	viper.Set("store.dsn", dsn)
	viper.Set("metrics_port", 0)
	t.Cleanup(func() {
		viper.Reset()
		viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
		viper.BindPFlag("log_file", rootCmd.PersistentFlags().Lookup("log-file"))
		viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
	})
	return dsn
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}
