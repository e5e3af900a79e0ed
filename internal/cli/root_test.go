package cli

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "readearn", cmd.Use)
	assert.Contains(t, cmd.Long, "read/write-to-earn")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{
		{"serve"},
		{"login"},
		{"logout"},
		{"read"},
		{"article", "list"},
		{"article", "mine"},
		{"article", "get"},
		{"article", "like"},
		{"article", "bookmark"},
		{"wallet", "show"},
		{"wallet", "transactions"},
		{"wallet", "convert"},
		{"wallet", "deposit"},
		{"wallet", "withdraw"},
		{"wallet", "requests"},
		{"publish", "balance"},
		{"publish", "draft"},
		{"publish", "request"},
		{"admin", "pending"},
		{"admin", "moderate"},
		{"admin", "payments"},
		{"admin", "approve"},
		{"admin", "reject"},
		{"admin", "activity"},
	}

	for _, path := range commands {
		name := path[len(path)-1]
		t.Run(name, func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err, "Command %v should exist", path)
			require.NotNil(t, subCmd)
			assert.Equal(t, name, subCmd.Name())
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

	accountFlag := cmd.PersistentFlags().Lookup("account")
	require.NotNil(t, accountFlag)
	assert.Equal(t, "default", accountFlag.DefValue)
}

func TestReadCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	readCmd, _, err := cmd.Find([]string{"read"})
	require.NoError(t, err)

	for _, name := range []string{"manual", "gift", "gift-message"} {
		assert.NotNil(t, readCmd.Flags().Lookup(name), name)
	}
	assert.Equal(t, "false", readCmd.Flags().Lookup("manual").DefValue)
}

func TestLoginCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	loginCmd, _, err := cmd.Find([]string{"login"})
	require.NoError(t, err)

	userFlag := loginCmd.Flags().Lookup("username")
	require.NotNil(t, userFlag)
	assert.Equal(t, "u", userFlag.Shorthand)
	assert.NotNil(t, loginCmd.Flags().Lookup("password-stdin"))
}

func TestPaymentRequestNeedsMethod(t *testing.T) {
	cmd := NewRootCommand()
	depositCmd, _, err := cmd.Find([]string{"wallet", "deposit"})
	require.NoError(t, err)

	methodFlag := depositCmd.Flags().Lookup("method")
	require.NotNil(t, methodFlag)
	assert.Equal(t, []string{"true"}, methodFlag.Annotations[cobra.BashCompOneRequiredFlag])
}

func TestInvalidFormat(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--format", "xml", "wallet"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}
