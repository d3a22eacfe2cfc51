package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/appbuilder/internal/foundation/errors"
)

const canonical = "https://cdn.cocoapods.org/"

const generatedPodfile = `source 'https://github.com/CocoaPods/Specs.git'
source 'https://cdn.cocoapods.org/'
platform :ios, '13.0'

target 'UnityFramework' do
  pod 'Firebase/Analytics', '10.0.0'
  pod 'GoogleAppMeasurement', '10.0.0'
  source "https://github.com/CocoaPods/Specs"
  pod 'FBSDKCoreKit'
end
`

func TestSanitizeBytes_RemovesDuplicatesAndDeprecated(t *testing.T) {
	s := NewSanitizer(canonical, []string{"GoogleAppMeasurement"})

	out, report := s.SanitizeBytes([]byte(generatedPodfile))

	want := `source 'https://cdn.cocoapods.org/'
platform :ios, '13.0'

target 'UnityFramework' do
  pod 'Firebase/Analytics', '10.0.0'
  pod 'FBSDKCoreKit'
end
`
	assert.Equal(t, want, string(out))
	assert.Equal(t, 3, report.SourcesFound)
	assert.Equal(t, 2, report.RemovedDuplicateSources)
	assert.Equal(t, 1, report.RemovedDeprecatedDeclarations)
	assert.True(t, report.SourceRewritten)
	assert.True(t, report.Changed)
	assert.NotEqual(t, report.DigestBefore, report.DigestAfter)
	require.Len(t, report.Removed, 3)
	assert.Equal(t, 2, report.Removed[0].Number)
	assert.Equal(t, ReasonDeprecatedPod, report.Removed[1].Reason)
}

func TestSanitizeBytes_NDuplicatesLeaveOne(t *testing.T) {
	for n := 1; n <= 5; n++ {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			var b strings.Builder
			for i := range n {
				fmt.Fprintf(&b, "source 'https://mirror-%d.example/specs'\n", i)
			}
			b.WriteString("pod 'A'\n")

			out, report := NewSanitizer(canonical, nil).SanitizeBytes([]byte(b.String()))
			assert.Equal(t, n-1, report.RemovedDuplicateSources)
			assert.Equal(t, 1, strings.Count(string(out), "source "))
			if n == 1 {
				assert.Equal(t, b.String(), string(out))
				return
			}
			assert.True(t, strings.HasPrefix(string(out), "source '"+canonical+"'\n"))
		})
	}
}

func TestSanitizeBytes_Idempotent(t *testing.T) {
	s := NewSanitizer(canonical, []string{"GoogleAppMeasurement", "FBSDKCoreKit"})

	once, _ := s.SanitizeBytes([]byte(generatedPodfile))
	twice, report := s.SanitizeBytes(once)

	assert.Equal(t, string(once), string(twice))
	assert.False(t, report.Changed)
	assert.Equal(t, report.DigestBefore, report.DigestAfter)
	assert.Zero(t, report.RemovedDuplicateSources)
	assert.Zero(t, report.RemovedDeprecatedDeclarations)
	assert.Empty(t, report.Removed)
}

func TestSanitizeBytes_PreservesLineEndingsAndIndent(t *testing.T) {
	in := "  source 'https://old'\r\npod 'A'\r\nsource 'https://dup'\r\npod 'B'"

	out, _ := NewSanitizer(canonical, nil).SanitizeBytes([]byte(in))
	assert.Equal(t, "  source '"+canonical+"'\r\npod 'A'\r\npod 'B'", string(out))
}

func TestSanitizeBytes_DeprecatedMatchesWholeNameAndSubspecs(t *testing.T) {
	in := "source 'x'\npod 'Ads'\npod 'Ads/Banner'\npod 'AdsExtra'\n# pod 'Ads' in a comment\n"

	out, report := NewSanitizer("", []string{"Ads"}).SanitizeBytes([]byte(in))
	assert.Equal(t, "source 'x'\npod 'AdsExtra'\n# pod 'Ads' in a comment\n", string(out))
	assert.Equal(t, 2, report.RemovedDeprecatedDeclarations)
	assert.False(t, report.SourceRewritten, "empty canonical source keeps the first declaration")
}

func TestSanitize_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Podfile")
	require.NoError(t, os.WriteFile(path, []byte(generatedPodfile), 0o640))

	s := NewSanitizer(canonical, nil)
	report, err := s.Sanitize(path)
	require.NoError(t, err)
	assert.True(t, report.Changed)
	assert.Equal(t, path, report.Path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), "source "))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o640), info.Mode().Perm())

	report, err = s.Sanitize(path)
	require.NoError(t, err)
	assert.False(t, report.Changed)
}

func TestSanitize_MissingFileIsSanitizeError(t *testing.T) {
	_, err := NewSanitizer(canonical, nil).Sanitize(filepath.Join(t.TempDir(), "Podfile"))
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategorySanitize))
}

func TestSanitize_NoSourceIsMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Podfile")
	require.NoError(t, os.WriteFile(path, []byte("pod 'A'\n"), 0o600))

	report, err := NewSanitizer(canonical, nil).Sanitize(path)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategorySanitize))
	assert.Zero(t, report.SourcesFound)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "pod 'A'\n", string(data), "malformed manifest is left untouched")
}

func TestSanitizeBytes_SingleSourceUntouched(t *testing.T) {
	in := "source 'https://github.com/CocoaPods/Specs.git' # private mirror\nplatform :ios, '13.0'\n"

	out, report := NewSanitizer(canonical, nil).SanitizeBytes([]byte(in))
	assert.Equal(t, in, string(out))
	assert.False(t, report.Changed)
	assert.False(t, report.SourceRewritten)
	assert.Equal(t, 1, report.SourcesFound)
}

func TestSanitizeBytes_RewriteKeepsTrailingContent(t *testing.T) {
	in := "source \"https://old.example/specs\" # mirror\nsource 'https://dup'\n"

	out, report := NewSanitizer(canonical, nil).SanitizeBytes([]byte(in))
	assert.Equal(t, "source \""+canonical+"\" # mirror\n", string(out))
	assert.True(t, report.SourceRewritten)
	assert.Equal(t, 1, report.RemovedDuplicateSources)
}
