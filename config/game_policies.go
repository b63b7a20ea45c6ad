package config

import (
	"fmt"
	"os"
	"strings"

	"gambler/settlement/domain/entities"
	"gambler/settlement/domain/services"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// gamePolicyFile is the on-disk shape of GAME_POLICY_FILE:
//
//	games:
//	  dice:
//	    houseEdge: "0.02"
//	    minStake: 100
//	  mines:
//	    defaultMines: 3
type gamePolicyFile struct {
	Games map[string]gamePolicyEntry `yaml:"games"`
}

type gamePolicyEntry struct {
	HouseEdge    string `yaml:"houseEdge"`
	MinStake     int64  `yaml:"minStake"`
	MaxStake     int64  `yaml:"maxStake"`
	DefaultMines int    `yaml:"defaultMines"`
}

// DefaultGamePolicy is the policy every game uses unless the policy file overrides it
func (c *Config) DefaultGamePolicy() services.GamePolicy {
	return services.GamePolicy{
		HouseEdge:    c.HouseEdge,
		MinStake:     c.MinStake,
		MaxStake:     c.MaxStake,
		DefaultMines: 3,
	}
}

// GamePolicies reads GAME_POLICY_FILE. With no file configured every game uses the default policy.
func (c *Config) GamePolicies() (map[entities.GameType]services.GamePolicy, error) {
	if c.GamePolicyFile == "" {
		return map[entities.GameType]services.GamePolicy{}, nil
	}

	data, err := os.ReadFile(c.GamePolicyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read game policy file: %w", err)
	}
	return ParseGamePolicies(data, c.DefaultGamePolicy())
}

// ParseGamePolicies decodes a policy document. Fields left out fall back to base.
func ParseGamePolicies(data []byte, base services.GamePolicy) (map[entities.GameType]services.GamePolicy, error) {
	var file gamePolicyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse game policy file: %w", err)
	}

	policies := make(map[entities.GameType]services.GamePolicy, len(file.Games))
	for name, entry := range file.Games {
		gameType := entities.GameType(strings.ToLower(strings.TrimSpace(name)))
		if !gameType.IsValid() {
			return nil, fmt.Errorf("unknown game type %q in policy file", name)
		}

		policy := base
		if entry.HouseEdge != "" {
			edge, err := decimal.NewFromString(entry.HouseEdge)
			if err != nil {
				return nil, fmt.Errorf("invalid house edge for %s: %w", name, err)
			}
			if edge.IsNegative() || edge.GreaterThanOrEqual(decimal.NewFromInt(1)) {
				return nil, fmt.Errorf("house edge for %s must be in [0, 1), got %s", name, edge)
			}
			policy.HouseEdge = edge
		}
		if entry.MinStake > 0 {
			policy.MinStake = entry.MinStake
		}
		if entry.MaxStake > 0 {
			policy.MaxStake = entry.MaxStake
		}
		if entry.DefaultMines > 0 {
			policy.DefaultMines = entry.DefaultMines
		}
		if policy.MaxStake < policy.MinStake {
			return nil, fmt.Errorf("stake limits for %s are invalid: min %d, max %d", name, policy.MinStake, policy.MaxStake)
		}

		policies[gameType] = policy
	}

	return policies, nil
}
