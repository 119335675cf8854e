package docker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	_ "github.com/docker/distribution"
	dockertypes "github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	docker "github.com/docker/docker/client"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/sirupsen/logrus"
	"github.com/sql-infer/devtools/pkg/logging"
	"github.com/sql-infer/devtools/pkg/runner"
)

// SrcDir is the path inside the container where the command's working
// directory is mounted.
const SrcDir = "/src"

// Docker implements the Runner interface by running commands inside a
// throwaway container of Command.Image. The daemon is located through the
// standard DOCKER_* environment variables.
type Docker struct{}

func init() {
	runner.Registry["docker"] = Docker{}
}

// Run creates and runs the container. It blocks until the container
// exits and returns the exit code of the container command. If there was an
// error starting the container, the exit code is irrelevant.
func (d Docker) Run(ctx context.Context, cmd runner.Command, out io.Writer) (code int, err error) {
	if cmd.Image == "" {
		return 0, errors.New("docker runner requires an image")
	}
	if len(cmd.Args) == 0 {
		return 0, errors.New("empty command")
	}

	dir := cmd.Dir
	if dir == "" {
		dir = "."
	}
	dir, err = filepath.Abs(dir)
	if err != nil {
		return 0, err
	}

	c, err := docker.NewEnvClient()
	if err != nil {
		return 0, fmt.Errorf("could not create docker client; %s", err)
	}
	defer func() {
		derr := c.Close()
		if derr != nil && err == nil {
			err = fmt.Errorf("could not close docker client; %s", derr)
		}
	}()

	err = ensureImage(ctx, c, cmd.Image, out)
	if err != nil {
		return 0, err
	}

	config := container.Config{
		Image:      cmd.Image,
		Cmd:        cmd.Args,
		Env:        cmd.EnvList(),
		WorkingDir: SrcDir,
		User:       fmt.Sprintf("%d:%d", os.Getuid(), os.Getgid()),
	}
	hostConfig := container.HostConfig{
		Mounts:      []mount.Mount{{Type: mount.TypeBind, Source: dir, Target: SrcDir}},
		AutoRemove:  false,
		NetworkMode: "host",
	}

	res, err := c.ContainerCreate(ctx, &config, &hostConfig, nil, "")
	if err != nil {
		return 0, err
	}

	var log logrus.FieldLogger = cmd.Log
	if log == nil {
		log = logging.Discard()
	}
	defer removeContainer(c, res.ID, log)

	err = c.ContainerStart(ctx, res.ID, dockertypes.ContainerStartOptions{})
	if err != nil {
		return 0, err
	}

	logs, err := c.ContainerLogs(ctx, res.ID,
		dockertypes.ContainerLogsOptions{Follow: true, ShowStdout: true, ShowStderr: true})
	if err != nil {
		return 0, err
	}
	defer logs.Close()

	_, err = stdcopy.StdCopy(out, out, logs)
	if err != nil {
		return 0, err
	}

	var result struct {
		State struct {
			ExitCode int
		}
	}

	_, inspect, err := c.ContainerInspectWithRaw(ctx, res.ID, false)
	if err != nil {
		return 0, err
	}

	err = json.Unmarshal(inspect, &result)
	if err != nil {
		return 0, err
	}

	return result.State.ExitCode, nil
}

type containerRemover interface {
	ContainerRemove(ctx context.Context, id string, options dockertypes.ContainerRemoveOptions) error
}

// removeContainer force-removes the container id. Failures leave a stale
// container behind but do not affect the build, so they are only logged.
func removeContainer(c containerRemover, id string, log logrus.FieldLogger) {
	// the build ctx may already be cancelled
	err := c.ContainerRemove(context.Background(), id, dockertypes.ContainerRemoveOptions{Force: true})
	if err != nil {
		log.WithField("container", id).WithError(err).Warn("cannot remove container")
	}
}

// ensureImage pulls image unless it is already present locally.
func ensureImage(ctx context.Context, c *docker.Client, image string, out io.Writer) error {
	_, _, err := c.ImageInspectWithRaw(ctx, image)
	if err == nil {
		return nil
	}
	if !docker.IsErrImageNotFound(err) {
		return err
	}

	resp, err := c.ImagePull(ctx, image, dockertypes.ImagePullOptions{})
	if err != nil {
		return fmt.Errorf("could not pull image '%s'; %s", image, err)
	}
	defer resp.Close()

	err = jsonmessage.DisplayJSONMessagesStream(resp, out, 0, false, nil)
	if err != nil {
		return fmt.Errorf("could not pull image '%s'; %s", image, err)
	}
	return nil
}
