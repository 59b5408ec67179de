// Build output detection for the JVM build tools Scala projects use.
// Generated sources under these directories are usually copies of declarations
// that already live in the source tree.
package config

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// BuildArtifactDetector finds build output directories under a project root
type BuildArtifactDetector struct {
	projectRoot string
}

func NewBuildArtifactDetector(projectRoot string) *BuildArtifactDetector {
	return &BuildArtifactDetector{projectRoot: projectRoot}
}

// DetectOutputDirectories returns exclusion globs for the build tools found in the root
func (bad *BuildArtifactDetector) DetectOutputDirectories() []string {
	var patterns []string

	patterns = append(patterns, bad.detectSbtOutputs()...)
	patterns = append(patterns, bad.detectMillOutputs()...)
	patterns = append(patterns, bad.detectScalaCLIOutputs()...)
	patterns = append(patterns, bad.detectGradleOutputs()...)
	patterns = append(patterns, bad.detectMavenOutputs()...)
	patterns = append(patterns, bad.detectToolingDirs()...)

	return DeduplicatePatterns(patterns)
}

// sbtTargetRe matches a custom `target := baseDirectory.value / "name"` setting
var sbtTargetRe = regexp.MustCompile(`target\s*:=\s*.*/\s*"([^"]+)"`)

func (bad *BuildArtifactDetector) detectSbtOutputs() []string {
	buildSbt := filepath.Join(bad.projectRoot, "build.sbt")
	if !bad.exists("build.sbt") {
		return nil
	}
	patterns := []string{"**/target/**", "project/project/**"}

	file, err := os.Open(buildSbt)
	if err != nil {
		return patterns
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if m := sbtTargetRe.FindStringSubmatch(scanner.Text()); m != nil {
			dir := strings.Trim(m[1], "/")
			if dir != "" {
				patterns = append(patterns, "**/"+dir+"/**")
			}
		}
	}
	return patterns
}

func (bad *BuildArtifactDetector) detectMillOutputs() []string {
	if bad.exists("build.sc") || bad.exists("build.mill") {
		return []string{"out/**"}
	}
	return nil
}

func (bad *BuildArtifactDetector) detectScalaCLIOutputs() []string {
	if bad.exists(".scala-build") || bad.exists("project.scala") {
		return []string{"**/.scala-build/**"}
	}
	return nil
}

func (bad *BuildArtifactDetector) detectGradleOutputs() []string {
	if bad.exists("build.gradle") || bad.exists("build.gradle.kts") {
		return []string{"**/build/**", "**/.gradle/**"}
	}
	return nil
}

func (bad *BuildArtifactDetector) detectMavenOutputs() []string {
	if bad.exists("pom.xml") {
		return []string{"**/target/**"}
	}
	return nil
}

// detectToolingDirs covers IDE and build-server state directories
func (bad *BuildArtifactDetector) detectToolingDirs() []string {
	var patterns []string
	for _, dir := range []string{".bloop", ".metals", ".bsp", ".idea"} {
		if bad.exists(dir) {
			patterns = append(patterns, "**/"+dir+"/**")
		}
	}
	return patterns
}

func (bad *BuildArtifactDetector) exists(name string) bool {
	_, err := os.Stat(filepath.Join(bad.projectRoot, name))
	return err == nil
}

// DeduplicatePatterns removes duplicate exclusion patterns, keeping first occurrences
func DeduplicatePatterns(patterns []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(patterns))

	for _, pattern := range patterns {
		if !seen[pattern] {
			seen[pattern] = true
			result = append(result, pattern)
		}
	}

	return result
}
