package paramstore_test

import (
	"testing"

	"github.com/aws-solutions-library-samples/guidance-for-no-code-multi-agent-ai-orchestration-on-aws-sub000/internal/paramstore"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"support_prompt", "support_prompt"},
		{"Customer Support v2", "Customer-Support-v2"},
		{"  a//b  ", "a-b"},
		{"émoji 🚀 name", "moji-name"},
		{"", "default"},
		{"!!!", "default"},
		{"aws-thing", "p-aws-thing"},
		{"SSM.prompt", "p-SSM.prompt"},
		{"awesome", "awesome"},
		{"v1.2-final", "v1.2-final"},
	}
	for _, tt := range tests {
		if got := paramstore.SanitizeName(tt.in); got != tt.want {
			t.Errorf("SanitizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestJoinPath(t *testing.T) {
	tests := []struct {
		in   []string
		want string
	}{
		{[]string{"agent", "a", "config"}, "/agent/a/config"},
		{[]string{"/agent/", "/a/", "", "config"}, "/agent/a/config"},
		{nil, "/"},
	}
	for _, tt := range tests {
		if got := paramstore.JoinPath(tt.in...); got != tt.want {
			t.Errorf("JoinPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
