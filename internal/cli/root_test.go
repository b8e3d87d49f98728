package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks POS_* variables so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"POS_DB_DRIVER", "POS_DB_DSN", "POS_HTTP_ADDR", "POS_TAX_RATE", "POS_TAX_RATE_BPS",
		"POS_KAFKA_BROKERS", "POS_API_KEYS", "POS_LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

// run executes the root command in-process and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// initDB creates a seeded database in a temp dir and returns its path.
func initDB(t *testing.T) string {
	t.Helper()
	clearEnv(t)
	db := filepath.Join(t.TempDir(), "pos.db")
	_, err := run(t, "init", "--db", db)
	require.NoError(t, err)
	return db
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "pos", cmd.Use)
	assert.Contains(t, cmd.Long, "FIFO")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{
		{"init"}, {"serve"}, {"menu"}, {"stock", "levels"}, {"stock", "add"},
		{"order", "place"}, {"orders"}, {"receipt"}, {"forecast"}, {"ledger", "verify"},
	}

	for _, path := range commands {
		t.Run(strings.Join(path, " "), func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err, "Command %v should exist", path)
			require.NotNil(t, subCmd)
			assert.Equal(t, path[len(path)-1], subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	for _, name := range []string{"config", "db", "driver"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), name)
	}
}

func TestInvalidFormat(t *testing.T) {
	clearEnv(t)
	_, err := run(t, "menu", "--format", "xml", "--db", filepath.Join(t.TempDir(), "pos.db"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestInvalidDriver(t *testing.T) {
	clearEnv(t)
	_, err := run(t, "menu", "--driver", "oracle", "--db", filepath.Join(t.TempDir(), "pos.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestInit_SeedsOnce(t *testing.T) {
	db := initDB(t)

	out, err := run(t, "init", "--db", db, "--format", "json")
	require.NoError(t, err)
	var resp struct {
		Status string     `json:"status"`
		Data   InitResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.False(t, resp.Data.Seeded)
	assert.Equal(t, 3, resp.Data.Items)
}

func TestInit_CustomSeed(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	seed := filepath.Join(dir, "menu.yaml")
	require.NoError(t, os.WriteFile(seed, []byte(`
items:
  - name: Dumplings
    price_cents: 650
    batches:
      - quantity: 12
`), 0o644))

	db := filepath.Join(dir, "pos.db")
	out, err := run(t, "init", "--db", db, "--seed", seed)
	require.NoError(t, err)
	assert.Contains(t, out, "1 menu items")

	out, err = run(t, "stock", "levels", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Dumplings")
	assert.Contains(t, out, "12")
}

func TestInit_InvalidSeed(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	seed := filepath.Join(dir, "menu.yaml")
	require.NoError(t, os.WriteFile(seed, []byte("items:\n  - name: Soup\n    price_cents: -1\n"), 0o644))

	_, err := run(t, "init", "--db", filepath.Join(dir, "pos.db"), "--seed", seed)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestMenu(t *testing.T) {
	db := initDB(t)

	out, err := run(t, "menu", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Burger")
	assert.Contains(t, out, "8.99")
	assert.Contains(t, out, "BURG001")
}

func TestOrderPlace_PrintsReceipt(t *testing.T) {
	db := initDB(t)

	out, err := run(t, "order", "place", "--db", db, "--item", "1:2", "--method", "cash")
	require.NoError(t, err)
	assert.Contains(t, out, "=== Restaurant Receipt ===")
	assert.Contains(t, out, "Order #1")
	assert.Contains(t, out, "Burger                   2    17.98")
	assert.Contains(t, out, "Total:                        19.24")

	out, err = run(t, "receipt", "1", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Order #1")

	out, err = run(t, "stock", "levels", "--db", db, "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"name":"Burger","quantity":48`)

	out, err = run(t, "ledger", "verify", "--db", db)
	require.NoError(t, err)
	assert.Equal(t, "Ledger balanced.\n", out)
}

func TestOrderPlace_IdempotencyKey(t *testing.T) {
	db := initDB(t)

	for i := 0; i < 2; i++ {
		_, err := run(t, "order", "place", "--db", db, "--item", "2:1", "--key", "till-1-0001")
		require.NoError(t, err)
	}
	out, err := run(t, "orders", "--db", db, "--format", "json")
	require.NoError(t, err)
	var resp struct {
		Data []map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Len(t, resp.Data, 1)
}

func TestOrderPlace_Rejections(t *testing.T) {
	db := initDB(t)

	tests := []struct {
		name     string
		args     []string
		wantCode string
	}{
		{"insufficient stock", []string{"--item", "3:81"}, "INSUFFICIENT_STOCK"},
		{"unknown item", []string{"--item", "1:1", "--item", "99:1"}, "VALIDATION_ERROR"},
		{"zero quantity", []string{"--item", "1:0"}, "VALIDATION_ERROR"},
		{"bad spec", []string{"--item", "burger:1"}, "VALIDATION_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"order", "place", "--db", db, "--format", "json"}, tt.args...)
			out, err := run(t, args...)
			require.Error(t, err)
			assert.Equal(t, ExitFailure, GetExitCode(err))

			var resp CLIResponse
			require.NoError(t, json.Unmarshal([]byte(out), &resp))
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
		})
	}

	out, err := run(t, "orders", "--db", db)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "\n"), "only the header line: %q", out)
}

func TestReceipt_Errors(t *testing.T) {
	db := initDB(t)

	_, err := run(t, "receipt", "abc", "--db", db)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = run(t, "receipt", "5", "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestStockAdd(t *testing.T) {
	db := initDB(t)

	out, err := run(t, "stock", "add", "--db", db, "--item", "2", "--qty", "20", "--cost", "0.90", "--expires", "2030-01-01")
	require.NoError(t, err)
	assert.Contains(t, out, "Received batch #4: 20 units of item 2")

	out, err = run(t, "stock", "add", "--db", db, "--item", "1", "--qty", "5", "--cost", "4.5", "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"unit_cost_cents":450`)

	for _, bad := range []string{"1.-5", "-1", "4.505", "abc"} {
		_, err = run(t, "stock", "add", "--db", db, "--item", "1", "--qty", "5", "--cost", bad)
		assert.Equal(t, ExitFailure, GetExitCode(err), bad)
	}

	_, err = run(t, "stock", "add", "--db", db, "--item", "2", "--qty", "0")
	assert.Equal(t, ExitFailure, GetExitCode(err))

	_, err = run(t, "stock", "add", "--db", db, "--qty", "5")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestForecast(t *testing.T) {
	db := initDB(t)
	_, err := run(t, "order", "place", "--db", db, "--item", "2:4")
	require.NoError(t, err)

	out, err := run(t, "forecast", "--db", db, "--months", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Fries")

	_, err = run(t, "forecast", "--db", db, "--months", "0")
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestServe_StopsOnCancel(t *testing.T) {
	db := initDB(t)

	rootOpts := &RootOptions{Format: "text", Database: db}
	ready := make(chan string, 1)
	opts := &ServeOptions{RootOptions: rootOpts, Addr: "127.0.0.1:0", Ready: ready}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cmd := NewServeCommand(rootOpts)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetContext(ctx)

	done := make(chan error, 1)
	go func() { done <- runServe(opts, cmd) }()

	var addr string
	select {
	case addr = <-ready:
	case err := <-done:
		t.Fatalf("serve exited early: %v", err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not start")
	}

	resp, err := http.Get("http://" + addr + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
}
