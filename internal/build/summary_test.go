package build

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"git.home.luguber.info/inful/appbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/appbuilder/internal/pipeline"
	"git.home.luguber.info/inful/appbuilder/internal/platform"
)

func TestWriteSummary_FailedPlatformShowsTail(t *testing.T) {
	var tail []string
	for i := 1; i <= 15; i++ {
		tail = append(tail, fmt.Sprintf("output line %d", i))
	}
	err := errors.BuildError("android build failed").
		WithContext(errors.KeyTail, strings.Join(tail, "\n")).
		Build()

	r := &BuildResult{
		RunID:   "0123456789",
		Profile: "dev",
		Order:   []platform.Platform{platform.Android},
		Platforms: map[platform.Platform]*PlatformResult{
			platform.Android: {Platform: platform.Android, Status: pipeline.StatusFailed, Err: err},
		},
	}

	var out bytes.Buffer
	WriteSummary(&out, r, "")

	assert.Contains(t, out.String(), "android build failed")
	assert.Contains(t, out.String(), "| output line 15")
	assert.Contains(t, out.String(), "| output line 6\n")
	assert.NotContains(t, out.String(), "| output line 5\n")
}

func TestWriteSummary_ErrorLinesPreferredOverTail(t *testing.T) {
	err := errors.BuildError("ios build failed").
		WithContext(errors.KeyErrorLines, "error CS0246: type not found").
		WithContext(errors.KeyTail, "Aborting batchmode").
		Build()
	r := &BuildResult{
		Order: []platform.Platform{platform.IOS},
		Platforms: map[platform.Platform]*PlatformResult{
			platform.IOS: {Platform: platform.IOS, Status: pipeline.StatusFailed, Err: err},
		},
	}

	var out bytes.Buffer
	WriteSummary(&out, r, "")

	assert.Contains(t, out.String(), "| error CS0246: type not found")
	assert.NotContains(t, out.String(), "Aborting batchmode")
}
