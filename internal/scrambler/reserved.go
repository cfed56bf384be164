package scrambler

// ScrambleType defines the category of identifier being scrambled. Only
// synthetic class names are generated; members keep fixed names.
type ScrambleType string

const TypeClass ScrambleType = "class"

// Java keywords and literals. A class or member with one of these names is
// legal in a class file but breaks decompiled output in an obvious way.
var reservedKeywords = map[string]bool{
	"abstract": true, "assert": true, "boolean": true, "break": true, "byte": true,
	"case": true, "catch": true, "char": true, "class": true, "const": true,
	"continue": true, "default": true, "do": true, "double": true, "else": true,
	"enum": true, "extends": true, "final": true, "finally": true, "float": true,
	"for": true, "goto": true, "if": true, "implements": true, "import": true,
	"instanceof": true, "int": true, "interface": true, "long": true, "native": true,
	"new": true, "package": true, "private": true, "protected": true, "public": true,
	"return": true, "short": true, "static": true, "strictfp": true, "super": true,
	"switch": true, "synchronized": true, "this": true, "throw": true, "throws": true,
	"transient": true, "try": true, "void": true, "volatile": true, "while": true,
	"true": true, "false": true, "null": true, "var": true, "yield": true,
	"record": true, "sealed": true, "permits": true, "module": true, "_": true,
}

// Windows device names cannot be used as entry file names.
var reservedClassNames = map[string]bool{
	"con": true, "prn": true, "aux": true, "nul": true,
	"com1": true, "com2": true, "com3": true, "com4": true,
	"lpt1": true, "lpt2": true, "lpt3": true, "lpt4": true,
}

func isReserved(name string) bool {
	return reservedKeywords[name] || reservedClassNames[toLowerASCII(name)]
}

func toLowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
