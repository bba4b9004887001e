package backend

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/holyc-lang/holycc/internal/ir"
)

// BuildExecutableFromIr is spec §4.7's ahead-of-time path: parse and
// verify ir_text, transpile it to C, compile the result together with
// the embedded runtime through the host C toolchain, and link an
// executable at outputPath. There is no LLVM object-file emission here
// - "compile to object file" is realized by hosting a real C compiler
// rather than a bitcode backend, the same substitution internal/backend
// makes everywhere else in this module for "LLVM" in the spec's prose.
func BuildExecutableFromIr(irText, outputPath, artifactDir, targetTriple string) Result {
	if err := checkRuntimeAbi(); err != nil {
		return fail(err)
	}

	mod, err := ir.Parse(irText)
	if err != nil {
		return fail(fmt.Errorf("parse: %w", err))
	}

	if err := verifyModule(mod); err != nil {
		return fail(err)
	}

	cSrc, err := transpileToC(mod)
	if err != nil {
		return fail(fmt.Errorf("transpile: %w", err))
	}

	dir := artifactDir
	keepTemps := artifactDir != ""

	if dir == "" {
		dir, err = os.MkdirTemp("", "holyc-build-*")
		if err != nil {
			return fail(fmt.Errorf("create build directory: %w", err))
		}

		defer os.RemoveAll(dir)
	} else if err := os.MkdirAll(dir, 0o755); err != nil {
		return fail(fmt.Errorf("create artifact directory: %w", err))
	}

	base := strings.TrimSuffix(filepath.Base(outputPath), filepath.Ext(outputPath))
	if base == "" {
		base = "a"
	}

	llPath := filepath.Join(dir, base+".ll")
	cPath := filepath.Join(dir, base+".c")
	runtimePath := filepath.Join(dir, base+"_runtime.c")
	objPath := filepath.Join(dir, base+".o")

	if err := os.WriteFile(llPath, []byte(mod.String()), 0o644); err != nil {
		return fail(fmt.Errorf("write %s: %w", llPath, err))
	}

	if err := os.WriteFile(cPath, []byte(cSrc), 0o644); err != nil {
		return fail(fmt.Errorf("write %s: %w", cPath, err))
	}

	if err := os.WriteFile(runtimePath, []byte(embeddedRuntimeC), 0o644); err != nil {
		return fail(fmt.Errorf("write %s: %w", runtimePath, err))
	}

	executor := newSecureCommandExecutor()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	compiler := pickCompiler()

	compileArgs := []string{"-std=c11", "-O1", "-c", cPath, "-o", objPath}
	if targetTriple != "" {
		compileArgs = append([]string{"--target=" + targetTriple}, compileArgs...)
	}

	if out, err := runTool(ctx, executor, compiler, compileArgs...); err != nil {
		return failMsg(fmt.Sprintf("compile failed: %v\n%s", err, out))
	}

	linkArgs := []string{"-std=c11", objPath, runtimePath, "-lpthread", "-o", outputPath}
	if targetTriple != "" {
		linkArgs = append([]string{"--target=" + targetTriple}, linkArgs...)
	}

	if out, err := runTool(ctx, executor, compiler, linkArgs...); err != nil {
		return failMsg(fmt.Sprintf("link failed: %v\n%s", err, out))
	}

	if !keepTemps {
		os.Remove(cPath)
		os.Remove(runtimePath)
		os.Remove(objPath)
	}

	return ok(outputPath)
}

func pickCompiler() string {
	for _, c := range []string{"cc", "clang", "gcc"} {
		if _, err := exec.LookPath(c); err == nil {
			return c
		}
	}

	return "cc"
}

func runTool(ctx context.Context, sce *secureCommandExecutor, name string, args ...string) (string, error) {
	cmd, err := sce.execute(ctx, name, args...)
	if err != nil {
		return "", err
	}

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		return out.String(), err
	}

	return out.String(), nil
}
