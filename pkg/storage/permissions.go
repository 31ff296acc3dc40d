package storage

import "fmt"

// Action is an operation gated by directory permissions.
type Action string

const (
	ActionUpload       Action = "upload"
	ActionCreateSubDir Action = "createSubDir"
	ActionDelete       Action = "delete"
	ActionDeleteFiles  Action = "deleteFiles"
	ActionMove         Action = "move"
	ActionMoveFiles    Action = "moveFiles"
)

// DirectoryPermissions are the effective flags of a directory.
type DirectoryPermissions struct {
	AllowUploads       bool `json:"allowUploads"`
	AllowCreateSubDirs bool `json:"allowCreateSubDirs"`
	AllowDelete        bool `json:"allowDelete"`
	AllowDeleteFiles   bool `json:"allowDeleteFiles"`
	AllowMove          bool `json:"allowMove"`
	AllowMoveFiles     bool `json:"allowMoveFiles"`
}

// AllowAll returns permissions with every flag set. It is the storage root's
// default.
func AllowAll() DirectoryPermissions {
	return DirectoryPermissions{
		AllowUploads:       true,
		AllowCreateSubDirs: true,
		AllowDelete:        true,
		AllowDeleteFiles:   true,
		AllowMove:          true,
		AllowMoveFiles:     true,
	}
}

// Allows reports whether the flag backing a is set. Unknown actions are denied.
func (p DirectoryPermissions) Allows(a Action) bool {
	switch a {
	case ActionUpload:
		return p.AllowUploads
	case ActionCreateSubDir:
		return p.AllowCreateSubDirs
	case ActionDelete:
		return p.AllowDelete
	case ActionDeleteFiles:
		return p.AllowDeleteFiles
	case ActionMove:
		return p.AllowMove
	case ActionMoveFiles:
		return p.AllowMoveFiles
	default:
		return false
	}
}

// Restrict ANDs p with the explicit flags in o. Unset flags in o leave p as is.
func (p DirectoryPermissions) Restrict(o PermissionFlags) DirectoryPermissions {
	and := func(cur bool, f *bool) bool {
		if f == nil {
			return cur
		}
		return cur && *f
	}
	return DirectoryPermissions{
		AllowUploads:       and(p.AllowUploads, o.AllowUploads),
		AllowCreateSubDirs: and(p.AllowCreateSubDirs, o.AllowCreateSubDirs),
		AllowDelete:        and(p.AllowDelete, o.AllowDelete),
		AllowDeleteFiles:   and(p.AllowDeleteFiles, o.AllowDeleteFiles),
		AllowMove:          and(p.AllowMove, o.AllowMove),
		AllowMoveFiles:     and(p.AllowMoveFiles, o.AllowMoveFiles),
	}
}

// PermissionFlags are the explicit flags stored on one directory. nil means
// "not set here", which inherits from the ancestors.
type PermissionFlags struct {
	AllowUploads       *bool `json:"allowUploads,omitempty"`
	AllowCreateSubDirs *bool `json:"allowCreateSubDirs,omitempty"`
	AllowDelete        *bool `json:"allowDelete,omitempty"`
	AllowDeleteFiles   *bool `json:"allowDeleteFiles,omitempty"`
	AllowMove          *bool `json:"allowMove,omitempty"`
	AllowMoveFiles     *bool `json:"allowMoveFiles,omitempty"`
}

// IsEmpty reports whether no flag is set.
func (f PermissionFlags) IsEmpty() bool {
	return f.AllowUploads == nil && f.AllowCreateSubDirs == nil && f.AllowDelete == nil &&
		f.AllowDeleteFiles == nil && f.AllowMove == nil && f.AllowMoveFiles == nil
}

// Merge returns f with every flag set in patch overriding f's value.
func (f PermissionFlags) Merge(patch PermissionFlags) PermissionFlags {
	pick := func(cur, next *bool) *bool {
		if next != nil {
			v := *next
			return &v
		}
		return cur
	}
	return PermissionFlags{
		AllowUploads:       pick(f.AllowUploads, patch.AllowUploads),
		AllowCreateSubDirs: pick(f.AllowCreateSubDirs, patch.AllowCreateSubDirs),
		AllowDelete:        pick(f.AllowDelete, patch.AllowDelete),
		AllowDeleteFiles:   pick(f.AllowDeleteFiles, patch.AllowDeleteFiles),
		AllowMove:          pick(f.AllowMove, patch.AllowMove),
		AllowMoveFiles:     pick(f.AllowMoveFiles, patch.AllowMoveFiles),
	}
}

// ParseAction validates an action name.
func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionUpload, ActionCreateSubDir, ActionDelete, ActionDeleteFiles, ActionMove, ActionMoveFiles:
		return a, nil
	}
	return "", fmt.Errorf("unknown action %q", s)
}

// Bool returns a pointer to b, for building PermissionFlags.
func Bool(b bool) *bool {
	return &b
}
