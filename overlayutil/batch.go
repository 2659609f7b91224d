/*
Copyright © 2019 the overlay authors.
This file is part of overlay.

overlay is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

overlay is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with overlay.  If not, see <http://www.gnu.org/licenses/>.
*/

package overlayutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ctessum/requestcache"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/overlay"
	"github.com/spatialmodel/overlay/internal/hash"
	"github.com/spatialmodel/overlay/layerio"
)

// Job is an overlay of two layer files.
type Job struct {
	// A and B are the paths to the input layers.
	A, B string

	// Mode is the name of the overlay operation.
	Mode string

	// Output is the path where the result is written.
	Output string
}

// Jobs holds the contents of a job file.
type Jobs struct {
	Job []Job
}

// ReadJobs reads the jobs from a TOML file. Relative paths in the jobs
// are made relative to the directory of the file, and environment
// variables in them are expanded.
func ReadJobs(path string) (*Jobs, error) {
	f, err := os.Open(os.ExpandEnv(path))
	if err != nil {
		return nil, fmt.Errorf("overlay: problem opening job file: %v", err)
	}
	defer f.Close()
	jobs := new(Jobs)
	if _, err = toml.DecodeReader(f, jobs); err != nil {
		return nil, fmt.Errorf("overlay: problem reading job file %s: %v", path, err)
	}
	if len(jobs.Job) == 0 {
		return nil, fmt.Errorf("overlay: job file %s contains no jobs", path)
	}
	dir := filepath.Dir(path)
	rel := func(p string) string {
		p = os.ExpandEnv(p)
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	for i := range jobs.Job {
		j := &jobs.Job[i]
		if j.A == "" || j.B == "" || j.Output == "" {
			return nil, fmt.Errorf("overlay: job %d in %s needs A, B, and Output", i, path)
		}
		if _, err := overlay.ParseMode(j.Mode); err != nil {
			return nil, fmt.Errorf("overlay: job %d in %s: %v", i, path, err)
		}
		j.A, j.B, j.Output = rel(j.A), rel(j.B), rel(j.Output)
	}
	return jobs, nil
}

// layerCache loads layer files, reading each file only once.
type layerCache struct {
	c *requestcache.Cache
}

func newLayerCache(workers, size int) *layerCache {
	return &layerCache{
		c: requestcache.NewCache(func(ctx context.Context, request interface{}) (interface{}, error) {
			return layerio.Open(request.(string))
		}, workers, requestcache.Deduplicate(), requestcache.Memory(size)),
	}
}

// open returns the layer in the file at path. The returned layer is
// shared and must not be modified.
func (lc *layerCache) open(ctx context.Context, path string) (*overlay.Layer, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("overlay: %v", err)
	}
	r, err := lc.c.NewRequest(ctx, abs, hash.Key(abs)).Result()
	if err != nil {
		return nil, err
	}
	return r.(*overlay.Layer), nil
}

// Batch runs the specified jobs in order. A failed job is logged and
// the remaining jobs are still run; the returned error reports how many
// jobs failed. The timeout applies to each job separately.
func Batch(log logrus.FieldLogger, jobs *Jobs, o *overlay.Options, timeout time.Duration) error {
	inputs := make(map[string]struct{})
	for _, j := range jobs.Job {
		inputs[j.A] = struct{}{}
		inputs[j.B] = struct{}{}
	}
	cache := newLayerCache(2, len(inputs))

	var failed int
	for i, j := range jobs.Job {
		jlog := log.WithFields(logrus.Fields{"job": i, "output": j.Output})
		if err := runJob(jlog, cache, j, o, timeout); err != nil {
			jlog.WithError(err).Error("job failed")
			failed++
		}
	}
	log.WithFields(logrus.Fields{
		"jobs":   len(jobs.Job),
		"failed": failed,
	}).Info("batch complete")
	if failed > 0 {
		return fmt.Errorf("overlay: %d of %d jobs failed", failed, len(jobs.Job))
	}
	return nil
}

func runJob(log logrus.FieldLogger, cache *layerCache, j Job, o *overlay.Options, timeout time.Duration) error {
	mode, err := overlay.ParseMode(j.Mode)
	if err != nil {
		return err
	}
	if _, err := checkOutputFile(j.Output, layerExtensions); err != nil {
		return err
	}
	startTime := time.Now()
	ctx, cancel := withTimeout(timeout)
	defer cancel()
	la, err := cache.open(ctx, j.A)
	if err != nil {
		return err
	}
	lb, err := cache.open(ctx, j.B)
	if err != nil {
		return err
	}
	oo := *o
	oo.Log = log
	return overlayAndSave(ctx, log, la, lb, mode, &oo, j.Output, startTime)
}
