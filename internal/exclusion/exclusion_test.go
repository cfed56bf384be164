package exclusion

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetNormalizesEntries(t *testing.T) {
	s := NewSet([]string{"  com/acme/  ", "", "   ", "org.example.Util", "org.example.Main#run"})
	assert.Equal(t, []string{"com/acme/", "org/example/Util", "org/example/Main.run"}, s.Prefixes())
	assert.Equal(t, 3, s.Len())
}

func TestSetMatching(t *testing.T) {
	s := NewSet([]string{"com/acme/", "org/x/Main.main", "org/x/Util.parse(Ljava/lang/String;)"})

	tests := []struct {
		name     string
		owner    string
		member   string
		desc     string
		class    bool
		excluded bool
	}{
		{"package prefix", "com/acme/Foo", "bar", "()V", true, true},
		{"other package", "com/other/Foo", "bar", "()V", false, false},
		{"method by name", "org/x/Main", "main", "([Ljava/lang/String;)V", false, true},
		{"method name prefix only", "org/x/Main", "mainLoop", "()V", false, true},
		{"other method", "org/x/Main", "run", "()V", false, false},
		{"overload by descriptor", "org/x/Util", "parse", "(Ljava/lang/String;)I", false, true},
		{"other overload", "org/x/Util", "parse", "([B)I", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.class, s.Class(tt.owner))
			assert.Equal(t, tt.excluded, s.Member(tt.owner, tt.member, tt.desc))
		})
	}
}

func TestResolverIsUnionOfRootAndLocal(t *testing.T) {
	root := NewSet([]string{"com/root/"})
	local := NewSet([]string{"com/local/", "com/app/Main.secret"})

	tests := []struct {
		name     string
		resolver *Resolver
		class    string
		want     bool
	}{
		{"root only matches", NewResolver(root, local), "com/root/A", true},
		{"local only matches", NewResolver(root, local), "com/local/A", true},
		{"neither", NewResolver(root, local), "com/app/A", false},
		{"local same as root", NewResolver(root, root), "com/local/A", false},
		{"no local set", NewResolver(root, nil), "com/root/A", true},
		{"no local set miss", NewResolver(root, nil), "com/local/A", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.resolver.Excluded(tt.class))
		})
	}

	r := NewResolver(root, local)
	assert.True(t, r.ExcludedMethod("com/app/Main", "secret", "()V"))
	assert.False(t, r.ExcludedMethod("com/app/Main", "open", "()V"))
	assert.True(t, r.ExcludedMethod("com/root/Any", "open", "()V"), "excluded class excludes its members")
	assert.True(t, r.ExcludedField("com/app/Main", "secretKey", "[B"))
}

func TestNilSetMatchesNothing(t *testing.T) {
	var s *Set
	assert.False(t, s.Class("a/B"))
	assert.False(t, s.Member("a/B", "c", "()V"))
	assert.Equal(t, 0, s.Len())
}
