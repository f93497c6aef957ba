package vcs

import "testing"

func TestHasRemote(t *testing.T) {
	// Store.Config returns a copy, so HasRemote must work on values.
	if (RepositoryConfig{}).HasRemote() {
		t.Error("empty config reports a remote")
	}
	if !(RepositoryConfig{RemoteURL: "git@github.com:me/notes.git"}).HasRemote() {
		t.Error("remote not reported")
	}

	s := &Store{cfg: RepositoryConfig{RemoteURL: "/srv/notes.git"}}
	if !s.Config().HasRemote() {
		t.Error("Store.Config().HasRemote() = false")
	}
}
