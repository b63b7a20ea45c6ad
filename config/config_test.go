package config

import (
	"testing"
	"time"

	"gambler/settlement/domain/entities"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("DATABASE_URL", "postgres://user:pass@db:5432")
	t.Setenv("DATABASE_NAME", "settlement")
	t.Setenv("HOUSE_EDGE", "0.05")
	t.Setenv("FUNDING_TIMEOUT", "2m")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("HTTP_PORT", "8181")
	t.Setenv("NATS_ACK_WAIT", "45s")

	cfg, err := load()
	require.NoError(t, err)

	assert.True(t, decimal.RequireFromString("0.05").Equal(cfg.HouseEdge))
	assert.Equal(t, 2*time.Minute, cfg.FundingTimeout)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 8181, cfg.HTTPPort)
	assert.Equal(t, 45*time.Second, cfg.NATSAckWait)
	assert.Equal(t, 5, cfg.NATSMaxDeliver)
	assert.Equal(t, "memory", cfg.LockBackend)
	assert.Equal(t, "postgres://user:pass@db:5432/settlement?sslmode=disable", cfg.GetDatabaseURL())
	assert.True(t, cfg.IsProduction())
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing database url", map[string]string{"DATABASE_URL": ""}},
		{"edge of one", map[string]string{"HOUSE_EDGE": "1"}},
		{"negative edge", map[string]string{"HOUSE_EDGE": "-0.1"}},
		{"bad duration", map[string]string{"SWEEP_INTERVAL": "soon"}},
		{"min above max", map[string]string{"MIN_STAKE": "500", "MAX_STAKE": "100"}},
		{"redis locker without address", map[string]string{"LOCK_BACKEND": "redis", "REDIS_ADDR": ""}},
		{"unknown bus", map[string]string{"EVENT_BUS": "carrier-pigeon"}},
		{"nats without deliveries", map[string]string{"EVENT_BUS": "nats", "NATS_MAX_DELIVER": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ENVIRONMENT", "production")
			t.Setenv("DATABASE_URL", "postgres://db:5432")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := load()
			assert.Error(t, err)
		})
	}
}

func TestGet_FallsBackToTestConfig(t *testing.T) {
	ResetConfig()
	t.Cleanup(ResetConfig)
	t.Setenv("ENVIRONMENT", "test")

	cfg := Get()
	require.NotNil(t, cfg)
	assert.Equal(t, "test", cfg.Environment)

	custom := NewTestConfig()
	custom.MinStake = 42
	SetTestConfig(custom)
	assert.Equal(t, int64(42), Get().MinStake)
}

func TestParseGamePolicies(t *testing.T) {
	base := NewTestConfig().DefaultGamePolicy()

	doc := []byte(`
games:
  dice:
    houseEdge: "0.01"
    minStake: 50
  Mines:
    defaultMines: 5
`)
	policies, err := ParseGamePolicies(doc, base)
	require.NoError(t, err)
	require.Len(t, policies, 2)

	dice := policies[entities.GameTypeDice]
	assert.True(t, decimal.RequireFromString("0.01").Equal(dice.HouseEdge))
	assert.Equal(t, int64(50), dice.MinStake)
	assert.Equal(t, base.MaxStake, dice.MaxStake)

	mines := policies[entities.GameTypeMines]
	assert.Equal(t, 5, mines.DefaultMines)
	assert.True(t, base.HouseEdge.Equal(mines.HouseEdge))

	_, err = ParseGamePolicies([]byte("games:\n  poker: {}\n"), base)
	assert.Error(t, err)

	_, err = ParseGamePolicies([]byte("games:\n  dice:\n    houseEdge: \"1.5\"\n"), base)
	assert.Error(t, err)

	_, err = ParseGamePolicies([]byte("games: ["), base)
	assert.Error(t, err)
}

func TestGamePolicies_NoFile(t *testing.T) {
	cfg := NewTestConfig()
	policies, err := cfg.GamePolicies()
	require.NoError(t, err)
	assert.Empty(t, policies)

	cfg.GamePolicyFile = "/nonexistent/policies.yaml"
	_, err = cfg.GamePolicies()
	assert.Error(t, err)
}
