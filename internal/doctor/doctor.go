// Package doctor checks that the environment a run needs is actually
// there: the RPC service, the AI provider credentials and enough local
// headroom.
package doctor

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"msfauditor/internal/config"
	"msfauditor/internal/msfrpc"
)

// Check is one named probe result.
type Check struct {
	Name   string
	OK     bool
	Detail string
}

// Run probes the RPC endpoint, AI configuration and local system. The
// returned error is non-nil when the RPC check fails; the other checks are
// informational.
func Run(ctx context.Context, cfg *config.Config) ([]Check, error) {
	checks := []Check{
		checkRPC(ctx, cfg),
		checkAI(cfg),
	}
	checks = append(checks, checkSystem(ctx)...)

	for _, check := range checks {
		if check.Name == "metasploit rpc" && !check.OK {
			return checks, fmt.Errorf("metasploit rpc check failed")
		}
	}
	return checks, nil
}

func checkRPC(ctx context.Context, cfg *config.Config) Check {
	check := Check{Name: "metasploit rpc"}

	client := msfrpc.New(msfrpc.Options{
		Host:     cfg.MSF.Host,
		Port:     cfg.MSF.Port,
		Username: cfg.MSF.Username,
		Password: cfg.MSF.Password,
		SSL:      cfg.MSF.SSL,
	})

	loginCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if err := client.Login(loginCtx); err != nil {
		check.Detail = fmt.Sprintf("%s unreachable: %v", client.Endpoint(), err)
		return check
	}
	defer client.Logout(loginCtx)

	version, err := client.CoreVersion(loginCtx)
	if err != nil {
		check.Detail = fmt.Sprintf("connected, but core.version failed: %v", err)
		return check
	}

	check.OK = true
	check.Detail = fmt.Sprintf("framework %s (ruby %s) at %s", version.Version, version.Ruby, client.Endpoint())
	return check
}

func checkAI(cfg *config.Config) Check {
	check := Check{Name: "ai provider"}

	if !cfg.AI.Enabled {
		check.OK = true
		check.Detail = "disabled"
		return check
	}

	key := cfg.AI.ResolveAPIKey()
	if key == "" {
		check.Detail = fmt.Sprintf("%s configured but no API key found", cfg.AI.Provider)
		return check
	}

	check.OK = true
	check.Detail = fmt.Sprintf("%s/%s, key %s", cfg.AI.Provider, cfg.AI.DefaultModel(), maskKey(key))
	return check
}

func checkSystem(ctx context.Context) []Check {
	var checks []Check

	cpuCheck := Check{Name: "cpu", OK: true}
	counts, err := cpu.CountsWithContext(ctx, true)
	if err != nil {
		cpuCheck.OK = false
		cpuCheck.Detail = err.Error()
	} else {
		cpuCheck.Detail = fmt.Sprintf("%d logical cores", counts)
		if percents, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(percents) > 0 {
			cpuCheck.Detail = fmt.Sprintf("%d logical cores, %.1f%% used", counts, percents[0])
		}
	}
	checks = append(checks, cpuCheck)

	memCheck := Check{Name: "memory", OK: true}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		memCheck.OK = false
		memCheck.Detail = err.Error()
	} else {
		memCheck.Detail = fmt.Sprintf("%.1f GiB total, %.1f%% used",
			float64(vm.Total)/(1<<30), vm.UsedPercent)
	}
	checks = append(checks, memCheck)

	return checks
}

func maskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
