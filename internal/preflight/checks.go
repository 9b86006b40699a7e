package preflight

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"shortline/internal/config"
	"shortline/internal/deps"
	"shortline/internal/services/llm"
	"shortline/internal/services/pexels"
)

// CheckScriptAPI verifies that the script model endpoint is reachable and
// the key is valid. Single attempt, short timeout.
func CheckScriptAPI(ctx context.Context, cfg *config.Config) Result {
	const name = "Script API"
	if strings.TrimSpace(cfg.LLM.APIKey) == "" {
		return Result{Name: name, Detail: "API key missing"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client := llm.NewClient(llm.Config{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
	}, llm.WithRetryMaxAttempts(1))

	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeCheckError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "API reachable"}
}

// CheckFootageAPI verifies the stock footage provider accepts the key.
func CheckFootageAPI(ctx context.Context, cfg *config.Config) Result {
	const name = "Footage API"
	if strings.TrimSpace(cfg.Pexels.APIKey) == "" {
		return Result{Name: name, Detail: "API key missing"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	client := pexels.NewClient(pexels.Config{
		APIKey:         cfg.Pexels.APIKey,
		BaseURL:        cfg.Pexels.BaseURL,
		TimeoutSeconds: cfg.Pexels.TimeoutSeconds,
	})
	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeCheckError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "API reachable"}
}

// CheckUploadCredentialFiles verifies the OAuth client secrets file exists.
// Per-channel tokens are checked at job validation, not here, because the
// set of channels lives in the store.
func CheckUploadCredentialFiles(cfg *config.Config) Result {
	const name = "Upload credentials"
	path := strings.TrimSpace(cfg.YouTube.ClientSecretsPath)
	if path == "" {
		return Result{Name: name, Detail: "client secrets path not configured"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s does not exist", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("stat %s: %v", path, err)}
	}
	if info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s is a directory", path)}
	}
	return Result{Name: name, Passed: true, Detail: "client secrets present"}
}

// CheckRenderBinaries reports one result per required render binary.
func CheckRenderBinaries() []Result {
	statuses := deps.CheckBinaries(deps.Requirements())
	results := make([]Result, 0, len(statuses))
	for _, status := range statuses {
		if status.Optional {
			continue
		}
		result := Result{Name: status.Name, Passed: status.Available}
		if status.Available {
			result.Detail = status.Command
		} else {
			result.Detail = status.Detail
		}
		results = append(results, result)
	}
	return results
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

func summarizeCheckError(err error) string {
	if err == nil {
		return ""
	}
	message := err.Error()
	if len(message) > 120 {
		message = message[:120] + "..."
	}
	return message
}
