package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pharmfinder/m/domain"
	"pharmfinder/m/internal/config"
	"pharmfinder/m/internal/ranking"
)

func TestRootCommandRegistersSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "medications", "find", "import-medications"} {
		assert.True(t, names[want], want)
	}
}

func TestPrintRanked(t *testing.T) {
	price := int64(2500)
	pharmacies := ranking.Rank([]domain.Pharmacy{
		{ID: 3, Name: "Pharmacie Nkembo", Rating: "4.2", MedicationPrice: &price},
	}, ranking.Options{})

	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	require.NoError(t, printRanked(cmd, pharmacies))

	assert.Contains(t, out.String(), "Pharmacie Nkembo")
	assert.Contains(t, out.String(), "2 500 FCFA")
	assert.Contains(t, out.String(), "N/A")
}

func TestNewApp_SQLiteState(t *testing.T) {
	c := config.FromEnv(func(key string) string {
		if key == "DATABASE_DSN" {
			return ":memory:"
		}
		return ""
	})
	a, err := newApp(context.Background(), c, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.redis)
	assert.NotNil(t, a.svc.Search)
	assert.NotNil(t, a.svc.Checkout)
}
