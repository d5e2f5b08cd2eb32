package artifacts

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// BuildInfo is the compiler input and version a Hardhat artifact was built from.
type BuildInfo struct {
	ID              string          `json:"id"`
	SolcVersion     string          `json:"solcVersion"`
	SolcLongVersion string          `json:"solcLongVersion"`
	Input           json.RawMessage `json:"input"`
}

// CompilerVersion returns the version string explorers expect ("v0.8.7+commit.e28d00a7").
func (b *BuildInfo) CompilerVersion() string {
	v := b.SolcLongVersion
	if v == "" {
		v = b.SolcVersion
	}
	if v != "" && !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}

type debugFile struct {
	BuildInfo string `json:"buildInfo"`
}

// BuildInfo resolves the build-info referenced by the artifact's .dbg.json.
func (a *ContractArtifact) BuildInfo() (*BuildInfo, error) {
	if a.Path == "" {
		return nil, fmt.Errorf("%s: artifact was not loaded from disk", a.name())
	}
	dbgPath := strings.TrimSuffix(a.Path, ".json") + ".dbg.json"
	data, err := os.ReadFile(dbgPath)
	if err != nil {
		return nil, fmt.Errorf("%s: read debug file: %w", a.name(), err)
	}
	var dbg debugFile
	if err := json.Unmarshal(data, &dbg); err != nil {
		return nil, fmt.Errorf("%s: parse debug file: %w", a.name(), err)
	}
	if dbg.BuildInfo == "" {
		return nil, fmt.Errorf("%s: debug file has no buildInfo", a.name())
	}

	infoPath := dbg.BuildInfo
	if !filepath.IsAbs(infoPath) {
		infoPath = filepath.Join(filepath.Dir(dbgPath), infoPath)
	}
	data, err = os.ReadFile(infoPath)
	if err != nil {
		return nil, fmt.Errorf("%s: read build info: %w", a.name(), err)
	}
	var info BuildInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("%s: parse build info: %w", a.name(), err)
	}
	if len(info.Input) == 0 {
		return nil, fmt.Errorf("%s: build info has no compiler input", a.name())
	}
	return &info, nil
}
