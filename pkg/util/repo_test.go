package util

import "testing"

func TestNormalizeRepoName(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "already clean", in: "team/app", want: "team/app"},
		{name: "uppercase", in: "Team/App", want: "team/app"},
		{name: "leading slash", in: "/library/nginx", want: "library/nginx"},
		{name: "illegal characters", in: "my repo@2024", want: "my-repo-2024"},
		{name: "trailing separators", in: "app/.", want: "app"},
		{name: "surrounding spaces", in: "  demo/app  ", want: "demo/app"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeRepoName(tc.in); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestLooksLikeImageID(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want bool
	}{
		{name: "short id", in: "3f2fb2b1d6e1", want: true},
		{name: "full digest", in: "sha256:6d1ef012b5674ad8a127ecfa9b5e6f5178d171b90ee462846974177fd9bdd39f", want: true},
		{name: "bare hex digest", in: "6d1ef012b5674ad8a127ecfa9b5e6f5178d171b90ee462846974177fd9bdd39f", want: true},
		{name: "name reference", in: "library/nginx", want: false},
		{name: "tagged reference", in: "nginx:latest", want: false},
		{name: "too short", in: "abc123", want: false},
		{name: "empty", in: "", want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := LooksLikeImageID(tc.in); got != tc.want {
				t.Fatalf("LooksLikeImageID(%q) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestSplitNameTag(t *testing.T) {
	cases := []struct {
		name     string
		in       string
		wantName string
		wantTag  string
	}{
		{name: "name and tag", in: "myapp:1.2.3", wantName: "myapp", wantTag: "1.2.3"},
		{name: "no tag", in: "myapp", wantName: "myapp", wantTag: ""},
		{name: "registry with port", in: "localhost:5000/myapp", wantName: "localhost:5000/myapp", wantTag: ""},
		{name: "registry with port and tag", in: "localhost:5000/myapp:dev", wantName: "localhost:5000/myapp", wantTag: "dev"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gotName, gotTag := SplitNameTag(tc.in)
			if gotName != tc.wantName || gotTag != tc.wantTag {
				t.Fatalf("SplitNameTag(%q) = (%q, %q), want (%q, %q)", tc.in, gotName, gotTag, tc.wantName, tc.wantTag)
			}
		})
	}
}
