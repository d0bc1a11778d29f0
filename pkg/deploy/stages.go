package deploy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Remote executes commands and uploads files on the target host over
// an authenticated encrypted channel.
type Remote interface {
	Run(ctx context.Context, cmd string) error
	Upload(ctx context.Context, local, remote string) error
}

//go:generate moq -out mock_remote.go -fmt goimports . Remote

// Checkout brings the working copy to the deployed ref.
type Checkout struct {
	Dir string
	Ref string
}

// Name returns the name of the stage.
func (c *Checkout) Name() string { return "checkout" }

// Run fetches the remote and resets the working copy to the ref.
func (c *Checkout) Run(ctx context.Context) error {
	if err := command(ctx, c.Dir, "git fetch --force origin"); err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	if err := command(ctx, c.Dir, "git checkout --force "+shellQuote(c.Ref)); err != nil {
		return fmt.Errorf("checkout: %w", err)
	}
	return nil
}

// Lint installs backend dependencies and runs the style checker.
// It is the first gate of the pipeline: nothing is built or shipped
// from code that doesn't pass it.
type Lint struct {
	Dir      string
	Commands []string
}

// Name returns the name of the stage.
func (l *Lint) Name() string { return "lint" }

// Run executes the lint commands in order.
func (l *Lint) Run(ctx context.Context) error {
	cmds := l.Commands
	if len(cmds) == 0 {
		cmds = []string{
			"pip install -r backend/requirements.txt",
			"flake8 backend/",
		}
	}

	for _, c := range cmds {
		if err := command(ctx, l.Dir, c); err != nil {
			return err
		}
	}
	return nil
}

// BuildFrontend installs frontend dependencies and produces the
// static bundle.
type BuildFrontend struct {
	Dir      string
	Commands []string
	// Bundle is the directory the build writes to, checked after
	// the build so a silently empty build fails the stage.
	Bundle string
}

// Name returns the name of the stage.
func (b *BuildFrontend) Name() string { return "build_frontend" }

// Run executes the build commands and verifies the bundle exists.
func (b *BuildFrontend) Run(ctx context.Context) error {
	cmds := b.Commands
	if len(cmds) == 0 {
		cmds = []string{"npm ci", "npm run build"}
	}

	for _, c := range cmds {
		if err := command(ctx, b.Dir, c); err != nil {
			return err
		}
	}

	fi, err := os.Stat(b.Bundle)
	if err != nil {
		return fmt.Errorf("bundle directory after build: %w", err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("bundle path %s is not a directory", b.Bundle)
	}

	return nil
}

// Package archives the bundle into a single transferable file.
type Package struct {
	Bundle  string
	Archive string
}

// Name returns the name of the stage.
func (p *Package) Name() string { return "package" }

// Run archives the bundle.
func (p *Package) Run(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(p.Archive), 0o755); err != nil {
		return fmt.Errorf("prepare archive directory: %w", err)
	}
	return Pack(ctx, p.Bundle, p.Archive)
}

// Transfer ships the archive to the target host. It only touches the
// staging path; a failure here leaves the remote topology untouched.
type Transfer struct {
	Remote  Remote
	Archive string
	Staging string
}

// Name returns the name of the stage.
func (t *Transfer) Name() string { return "transfer" }

// Run uploads the archive to the staging path.
func (t *Transfer) Run(ctx context.Context) error {
	return t.Remote.Upload(ctx, t.Archive, t.Staging)
}

// RemoteDeploy replaces the bundle directory contents with the new
// archive and rebuilds the container topology. The teardown happens
// before the rebuild completes: a failure mid-stage leaves the
// service down until the next successful run.
type RemoteDeploy struct {
	Remote  Remote
	Staging string
	Bundle  string
	Compose string
}

// Name returns the name of the stage.
func (d *RemoteDeploy) Name() string { return "remote_deploy" }

// Run executes the remote deploy sequence. The bundle directory is
// emptied rather than removed, and compose is brought down without
// volumes: static, media and database volumes outlive every deploy.
func (d *RemoteDeploy) Run(ctx context.Context) error {
	bundle, staging, compose := shellQuote(d.Bundle), shellQuote(d.Staging), shellQuote(d.Compose)

	cmds := []string{
		fmt.Sprintf("mkdir -p %s && find %s -mindepth 1 -delete", bundle, bundle),
		fmt.Sprintf("tar -xzf %s -C %s", staging, bundle),
		fmt.Sprintf("cd %s && docker compose down", compose),
		fmt.Sprintf("cd %s && docker compose pull", compose),
		fmt.Sprintf("cd %s && docker compose up -d --build", compose),
		fmt.Sprintf("rm -f %s", staging),
	}

	for _, c := range cmds {
		if err := d.Remote.Run(ctx, c); err != nil {
			return fmt.Errorf("remote %q: %w", firstWords(c, 4), err)
		}
	}

	return nil
}

func firstWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}
