package transformer

import (
	"github.com/apex/log"

	"github.com/whit3rabbit/jvmmixer/internal/classfile"
	"github.com/whit3rabbit/jvmmixer/internal/classpath"
	"github.com/whit3rabbit/jvmmixer/internal/scrambler"
)

const (
	decryptName = "a"
	decryptDesc = "(Ljava/lang/String;II)Ljava/lang/String;"

	bootstrapName = "b"
	bootstrapDesc = "(Ljava/lang/invoke/MethodHandles$Lookup;Ljava/lang/String;Ljava/lang/invoke/MethodType;ILjava/lang/String;Ljava/lang/String;Ljava/lang/String;)Ljava/lang/Object;"

	lookupClass = "java/lang/invoke/MethodHandles$Lookup"
	handleClass = "java/lang/invoke/MethodHandle"
	typeClass   = "java/lang/invoke/MethodType"
)

// BootstrapGenerator builds the run's decryptor class on first use. The
// class decrypts call-site identifiers and links every rewritten call site.
type BootstrapGenerator struct {
	reg   *classpath.Registry
	names *scrambler.Scrambler

	class  *classfile.Class
	handle classfile.Handle
	used   bool
}

// NewBootstrapGenerator returns a generator that registers its class into
// reg and draws the class name from names.
func NewBootstrapGenerator(reg *classpath.Registry, names *scrambler.Scrambler) *BootstrapGenerator {
	return &BootstrapGenerator{reg: reg, names: names}
}

// Handle returns the bootstrap method handle, building and registering the
// class the first time it is called.
func (g *BootstrapGenerator) Handle() (classfile.Handle, error) {
	if g.used {
		return g.handle, nil
	}
	name, err := g.names.Scramble("bootstrap")
	if err != nil {
		return classfile.Handle{}, err
	}
	g.class = buildBootstrapClass(name)
	g.handle = classfile.Handle{
		Kind:  classfile.RefInvokeStatic,
		Owner: name,
		Name:  bootstrapName,
		Desc:  bootstrapDesc,
	}
	g.used = true
	g.reg.AddClass(g.class)
	log.WithField("class", name).Debug("generated bootstrap class")
	return g.handle, nil
}

// Used reports whether the class has been built.
func (g *BootstrapGenerator) Used() bool { return g.used }

// Class returns the generated class, or nil before first use.
func (g *BootstrapGenerator) Class() *classfile.Class { return g.class }

// IsSynthetic reports whether name is the generated class.
func (g *BootstrapGenerator) IsSynthetic(name string) bool {
	return g.used && g.class.Name == name
}

// buildBootstrapClass emits the class at version 49 so the type-inferencing
// verifier applies and no StackMapTable is needed.
func buildBootstrapClass(name string) *classfile.Class {
	c := classfile.NewClass(name, "java/lang/Object", classfile.Java5, classfile.AccPublic|classfile.AccFinal|classfile.AccSuper)
	c.AddMethod(classfile.AccPrivate|classfile.AccStatic, decryptName, decryptDesc, decryptCode())
	c.AddMethod(classfile.AccPublic|classfile.AccStatic, bootstrapName, bootstrapDesc, linkCode(name))
	return c
}

func op(code byte, operands ...byte) *classfile.Op { return classfile.NewOp(code, operands...) }

func invoke(code byte, owner, name, desc string) *classfile.MethodInsn {
	return &classfile.MethodInsn{Code: code, Owner: owner, Name: name, Desc: desc}
}

// decryptCode is a(String s, int classHash, int methodHash). Locals: 3 chars,
// 4 index, 5 key.
func decryptCode() *classfile.Code {
	loop, end, apply, fail := &classfile.Label{}, &classfile.Label{}, &classfile.Label{}, &classfile.Label{}
	slots := []*classfile.Label{{}, {}, {}, {}, {}}

	insns := []classfile.Instruction{
		op(classfile.ALOAD, 0),
		invoke(classfile.INVOKEVIRTUAL, "java/lang/String", "toCharArray", "()[C"),
		op(classfile.ASTORE, 3),
		op(classfile.ICONST_0),
		op(classfile.ISTORE, 4),
		loop,
		op(classfile.ILOAD, 4),
		op(classfile.ALOAD, 3),
		op(classfile.ARRAYLENGTH),
		&classfile.JumpInsn{Code: classfile.IF_ICMPGE, Target: end},
		op(classfile.ILOAD, 4),
		op(classfile.ICONST_5),
		op(classfile.IREM),
		&classfile.SwitchInsn{Code: classfile.TABLESWITCH, Default: fail, Low: 0, High: 4, Targets: slots},
	}
	keys := [][]classfile.Instruction{
		{op(classfile.ICONST_2)},
		{op(classfile.ILOAD, 1)},
		{op(classfile.ILOAD, 2)},
		{op(classfile.ILOAD, 1), op(classfile.ILOAD, 2), op(classfile.IADD)},
		{op(classfile.ILOAD, 4)},
	}
	for i, key := range keys {
		insns = append(insns, slots[i])
		insns = append(insns, key...)
		insns = append(insns, op(classfile.ISTORE, 5), &classfile.JumpInsn{Code: classfile.GOTO, Target: apply})
	}
	insns = append(insns,
		fail,
		&classfile.TypeInsn{Code: classfile.NEW, Type: "java/lang/IllegalStateException"},
		op(classfile.DUP),
		invoke(classfile.INVOKESPECIAL, "java/lang/IllegalStateException", "<init>", "()V"),
		op(classfile.ATHROW),
		apply,
		op(classfile.ALOAD, 3),
		op(classfile.ILOAD, 4),
		op(classfile.ALOAD, 3),
		op(classfile.ILOAD, 4),
		op(classfile.CALOAD),
		op(classfile.ILOAD, 5),
		op(classfile.IXOR),
		op(classfile.I2C),
		op(classfile.CASTORE),
		op(classfile.IINC, 4, 1),
		&classfile.JumpInsn{Code: classfile.GOTO, Target: loop},
		end,
		&classfile.TypeInsn{Code: classfile.NEW, Type: "java/lang/String"},
		op(classfile.DUP),
		op(classfile.ALOAD, 3),
		invoke(classfile.INVOKESPECIAL, "java/lang/String", "<init>", "([C)V"),
		op(classfile.ARETURN),
	)
	return &classfile.Code{MaxStack: 4, MaxLocals: 6, Instructions: insns}
}

// linkCode is b(lookup, name, type, kind, owner, method, desc). Locals:
// 7 caller class, 8 class hash, 9 method hash, 10 stack trace, 11 frame
// index, 12 owner class, 13 method type, 14 method name, 15 handle.
func linkCode(self string) *classfile.Code {
	scan, next, found, virtual, link := &classfile.Label{}, &classfile.Label{}, &classfile.Label{}, &classfile.Label{}, &classfile.Label{}
	decrypt := func(slot byte) []classfile.Instruction {
		return []classfile.Instruction{
			op(classfile.ALOAD, slot),
			op(classfile.ILOAD, 8),
			op(classfile.ILOAD, 9),
			invoke(classfile.INVOKESTATIC, self, decryptName, decryptDesc),
		}
	}
	find := func(name string) []classfile.Instruction {
		return []classfile.Instruction{
			op(classfile.ALOAD, 0),
			op(classfile.ALOAD, 12),
			op(classfile.ALOAD, 14),
			op(classfile.ALOAD, 13),
			invoke(classfile.INVOKEVIRTUAL, lookupClass, name, "(Ljava/lang/Class;Ljava/lang/String;Ljava/lang/invoke/MethodType;)Ljava/lang/invoke/MethodHandle;"),
			op(classfile.ASTORE, 15),
		}
	}

	insns := []classfile.Instruction{
		op(classfile.ALOAD, 0),
		invoke(classfile.INVOKEVIRTUAL, lookupClass, "lookupClass", "()Ljava/lang/Class;"),
		op(classfile.ASTORE, 7),
		op(classfile.ALOAD, 7),
		invoke(classfile.INVOKEVIRTUAL, "java/lang/Class", "getName", "()Ljava/lang/String;"),
		invoke(classfile.INVOKEVIRTUAL, "java/lang/String", "hashCode", "()I"),
		op(classfile.ISTORE, 8),
		op(classfile.ICONST_0),
		op(classfile.ISTORE, 9),

		// The caller method is the first frame that belongs to the caller
		// class; the frames above it are this method and the linker.
		&classfile.TypeInsn{Code: classfile.NEW, Type: "java/lang/Throwable"},
		op(classfile.DUP),
		invoke(classfile.INVOKESPECIAL, "java/lang/Throwable", "<init>", "()V"),
		invoke(classfile.INVOKEVIRTUAL, "java/lang/Throwable", "getStackTrace", "()[Ljava/lang/StackTraceElement;"),
		op(classfile.ASTORE, 10),
		op(classfile.ICONST_0),
		op(classfile.ISTORE, 11),
		scan,
		op(classfile.ILOAD, 11),
		op(classfile.ALOAD, 10),
		op(classfile.ARRAYLENGTH),
		&classfile.JumpInsn{Code: classfile.IF_ICMPGE, Target: found},
		op(classfile.ALOAD, 10),
		op(classfile.ILOAD, 11),
		op(classfile.AALOAD),
		invoke(classfile.INVOKEVIRTUAL, "java/lang/StackTraceElement", "getClassName", "()Ljava/lang/String;"),
		op(classfile.ALOAD, 7),
		invoke(classfile.INVOKEVIRTUAL, "java/lang/Class", "getName", "()Ljava/lang/String;"),
		invoke(classfile.INVOKEVIRTUAL, "java/lang/String", "equals", "(Ljava/lang/Object;)Z"),
		&classfile.JumpInsn{Code: classfile.IFEQ, Target: next},
		op(classfile.ALOAD, 10),
		op(classfile.ILOAD, 11),
		op(classfile.AALOAD),
		invoke(classfile.INVOKEVIRTUAL, "java/lang/StackTraceElement", "getMethodName", "()Ljava/lang/String;"),
		invoke(classfile.INVOKEVIRTUAL, "java/lang/String", "hashCode", "()I"),
		op(classfile.ISTORE, 9),
		&classfile.JumpInsn{Code: classfile.GOTO, Target: found},
		next,
		op(classfile.IINC, 11, 1),
		&classfile.JumpInsn{Code: classfile.GOTO, Target: scan},
		found,
	}

	insns = append(insns, decrypt(4)...)
	insns = append(insns,
		op(classfile.ICONST_0),
		op(classfile.ALOAD, 7),
		invoke(classfile.INVOKEVIRTUAL, "java/lang/Class", "getClassLoader", "()Ljava/lang/ClassLoader;"),
		invoke(classfile.INVOKESTATIC, "java/lang/Class", "forName", "(Ljava/lang/String;ZLjava/lang/ClassLoader;)Ljava/lang/Class;"),
		op(classfile.ASTORE, 12),
	)
	insns = append(insns, decrypt(6)...)
	insns = append(insns,
		op(classfile.ALOAD, 7),
		invoke(classfile.INVOKEVIRTUAL, "java/lang/Class", "getClassLoader", "()Ljava/lang/ClassLoader;"),
		invoke(classfile.INVOKESTATIC, typeClass, "fromMethodDescriptorString", "(Ljava/lang/String;Ljava/lang/ClassLoader;)Ljava/lang/invoke/MethodType;"),
		op(classfile.ASTORE, 13),
	)
	insns = append(insns, decrypt(5)...)
	insns = append(insns,
		op(classfile.ASTORE, 14),
		// invokevirtual and invokeinterface both resolve through findVirtual.
		op(classfile.ILOAD, 3),
		op(classfile.SIPUSH, 0, classfile.INVOKESTATIC),
		&classfile.JumpInsn{Code: classfile.IF_ICMPNE, Target: virtual},
	)
	insns = append(insns, find("findStatic")...)
	insns = append(insns, &classfile.JumpInsn{Code: classfile.GOTO, Target: link}, virtual)
	insns = append(insns, find("findVirtual")...)
	insns = append(insns,
		link,
		&classfile.TypeInsn{Code: classfile.NEW, Type: "java/lang/invoke/ConstantCallSite"},
		op(classfile.DUP),
		op(classfile.ALOAD, 15),
		op(classfile.ALOAD, 2),
		invoke(classfile.INVOKEVIRTUAL, handleClass, "asType", "(Ljava/lang/invoke/MethodType;)Ljava/lang/invoke/MethodHandle;"),
		invoke(classfile.INVOKESPECIAL, "java/lang/invoke/ConstantCallSite", "<init>", "(Ljava/lang/invoke/MethodHandle;)V"),
		op(classfile.ARETURN),
	)
	return &classfile.Code{MaxStack: 6, MaxLocals: 16, Instructions: insns}
}
