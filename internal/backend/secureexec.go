package backend

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// secureCommandExecutor runs the AOT path's compiler/linker invocations
// with the same validate-name/validate-args/minimal-environment
// discipline the teacher's command-line front end uses for its own
// external tool calls, narrowed here to the handful of tools
// BuildExecutableFromIr ever needs to shell out to.
type secureCommandExecutor struct{}

func newSecureCommandExecutor() *secureCommandExecutor { return &secureCommandExecutor{} }

var allowedCompilers = []string{"cc", "gcc", "clang", "ld", "ar"}

var blockedNamePatterns = []string{
	"..",
	"~",
	"/bin/sh", "/bin/bash", "/bin/zsh",
	"cmd.exe", "powershell.exe", "wscript.exe",
	"python", "perl", "ruby", "node",
}

var injectionPatterns = []string{
	";", "&", "|", "`", "$(", "&&", "||", "${", ">", ">>", "<",
}

// execute runs name with args after validating both, in a minimal
// environment that carries only what a C toolchain invocation needs.
func (sce *secureCommandExecutor) execute(ctx context.Context, name string, args ...string) (*exec.Cmd, error) {
	if err := sce.validateCommandName(name); err != nil {
		return nil, fmt.Errorf("invalid command name: %w", err)
	}

	for i, arg := range args {
		if err := sce.validateCommandArgument(arg); err != nil {
			return nil, fmt.Errorf("invalid argument %d %q: %w", i, arg, err)
		}
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = sce.secureEnvironment()

	return cmd, nil
}

func (sce *secureCommandExecutor) validateCommandName(name string) error {
	cleanName := filepath.Clean(name)
	lowerName := strings.ToLower(cleanName)

	for _, pattern := range blockedNamePatterns {
		if strings.Contains(lowerName, pattern) {
			return fmt.Errorf("blocked command pattern: %s", pattern)
		}
	}

	baseName := filepath.Base(cleanName)
	if ext := filepath.Ext(baseName); ext != "" {
		baseName = strings.TrimSuffix(baseName, ext)
	}

	for _, allowed := range allowedCompilers {
		if strings.EqualFold(baseName, allowed) {
			return nil
		}
	}

	return fmt.Errorf("command not in allowed list: %s", baseName)
}

func (sce *secureCommandExecutor) validateCommandArgument(arg string) error {
	if len(arg) > 4096 {
		return fmt.Errorf("argument too long")
	}

	if strings.Contains(arg, "\x00") {
		return fmt.Errorf("null byte in argument")
	}

	for _, pattern := range injectionPatterns {
		if strings.Contains(arg, pattern) {
			return fmt.Errorf("potential command injection pattern: %s", pattern)
		}
	}

	if strings.Contains(arg, "..") {
		return fmt.Errorf("path traversal in argument")
	}

	return nil
}

func (sce *secureCommandExecutor) secureEnvironment() []string {
	env := []string{
		"PATH=" + os.Getenv("PATH"),
		"HOME=" + os.Getenv("HOME"),
		"TEMP=" + os.Getenv("TEMP"),
		"TMP=" + os.Getenv("TMP"),
	}

	for _, k := range []string{"CC", "CXX", "LD_LIBRARY_PATH"} {
		if v := os.Getenv(k); v != "" {
			env = append(env, k+"="+v)
		}
	}

	return env
}
