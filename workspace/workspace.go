// Package workspace implements the opaque on-disk path types the core
// consumes without interpreting: a workspace holds many profiles, each
// holding many flows, each with current/goal state files and a run
// history directory.
package workspace

import (
	"path/filepath"

	"github.com/google/uuid"

	"github.com/hashmap-kz/katomik-flow/id"
)

// These are distinct string types, not aliases, so the compiler catches a
// FlowDir accidentally passed where a ProfileDir is expected.
type (
	Dir               string
	PeaceDir          string
	AppDir            string
	ProfileDir        string
	ProfileHistoryDir string
	FlowDir           string
	StatesCurrentFile string
	StatesGoalFile    string
)

// Layout derives the conventional on-disk tree described in §6:
//
//	<workspace>/.peace/<app>/
//	  <profile>/
//	    <flow_id>/
//	      states_current.<ext>
//	      states_goal.<ext>
//	    .history/<timestamp>_<cmd>_<run_id prefix>.<ext>
type Layout struct {
	Workspace Dir
	App       AppDir
	Profile   ProfileDir
	Flow      FlowDir
}

// NewLayout derives a Layout for the given workspace root, app name,
// profile name and flow id.
func NewLayout(workspaceRoot, app, profile string, flowID id.FlowID) Layout {
	peaceDir := filepath.Join(workspaceRoot, ".peace")
	appDir := filepath.Join(peaceDir, app)
	profileDir := filepath.Join(appDir, profile)
	flowDir := filepath.Join(profileDir, flowID.String())
	return Layout{
		Workspace: Dir(workspaceRoot),
		App:       AppDir(appDir),
		Profile:   ProfileDir(profileDir),
		Flow:      FlowDir(flowDir),
	}
}

// StatesCurrentFile returns the path of the current-states snapshot, using
// ext (conventionally "yaml").
func (l Layout) StatesCurrentFile(ext string) StatesCurrentFile {
	return StatesCurrentFile(filepath.Join(string(l.Flow), "states_current."+ext))
}

// StatesGoalFile returns the path of the goal-states snapshot.
func (l Layout) StatesGoalFile(ext string) StatesGoalFile {
	return StatesGoalFile(filepath.Join(string(l.Flow), "states_goal."+ext))
}

// ProfileHistoryDir returns the profile's run-history directory.
func (l Layout) ProfileHistoryDir() ProfileHistoryDir {
	return ProfileHistoryDir(filepath.Join(string(l.Profile), ".history"))
}

// HistoryFile names one run's history file: <timestamp>_<cmd>.<ext>, with
// runID's first 8 hex characters appended to disambiguate two runs of the
// same command started within the same timestamp resolution.
func (l Layout) HistoryFile(timestamp, cmdName string, runID uuid.UUID, ext string) string {
	name := timestamp + "_" + cmdName + "_" + runID.String()[:8] + "." + ext
	return filepath.Join(string(l.ProfileHistoryDir()), name)
}
