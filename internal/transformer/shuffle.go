package transformer

import (
	"math/rand"

	"github.com/whit3rabbit/jvmmixer/internal/classfile"
)

// ShuffleMembers permutes the declaration order of c's fields, methods and
// inner-class records. The JVM resolves members by name and descriptor, so
// the order carries no meaning at run time.
func ShuffleMembers(c *classfile.Class, random *rand.Rand) {
	random.Shuffle(len(c.Fields), func(i, j int) {
		c.Fields[i], c.Fields[j] = c.Fields[j], c.Fields[i]
	})
	random.Shuffle(len(c.Methods), func(i, j int) {
		c.Methods[i], c.Methods[j] = c.Methods[j], c.Methods[i]
	})
	random.Shuffle(len(c.InnerClasses), func(i, j int) {
		c.InnerClasses[i], c.InnerClasses[j] = c.InnerClasses[j], c.InnerClasses[i]
	})
}
