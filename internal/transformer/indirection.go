package transformer

import (
	"github.com/apex/log"

	"github.com/whit3rabbit/jvmmixer/internal/cipher"
	"github.com/whit3rabbit/jvmmixer/internal/classfile"
	"github.com/whit3rabbit/jvmmixer/internal/exclusion"
)

// IndyName is the invocation name of every rewritten call site.
const IndyName = "i"

// IndirectionStats counts what one run of the pass touched.
type IndirectionStats struct {
	Classes   int
	Methods   int
	CallSites int
	Casts     int
}

// IndirectionTransformer replaces static, virtual and interface calls with
// invokedynamic sites linked by the generated bootstrap class. Owner, name
// and descriptor of the target travel as encrypted bootstrap arguments.
type IndirectionTransformer struct {
	ctx      Context
	resolver *exclusion.Resolver
	stats    IndirectionStats
}

// NewIndirectionTransformer returns the pass for ctx. Its local exclusions
// come from obfuscation.indirection.exclusions.
func NewIndirectionTransformer(ctx Context) *IndirectionTransformer {
	local := exclusion.NewSet(ctx.GetConfig().Obfuscation.Indirection.Exclusions)
	return &IndirectionTransformer{
		ctx:      ctx,
		resolver: exclusion.NewResolver(ctx.RootExclusions(), local),
	}
}

func (t *IndirectionTransformer) Name() string { return "indirection" }

func (t *IndirectionTransformer) Enabled() bool {
	return t.ctx.GetConfig().Obfuscation.Indirection.Enabled
}

// Stats returns the counters of the last Process call.
func (t *IndirectionTransformer) Stats() IndirectionStats { return t.stats }

// Process rewrites every eligible call site of every emitted class. Classes
// added during the pass, the bootstrap class included, are not visited.
func (t *IndirectionTransformer) Process(onClass func(name string)) error {
	t.stats = IndirectionStats{}
	boot := t.ctx.Bootstrap()
	for _, c := range t.ctx.Registry().Classes() {
		if onClass != nil {
			onClass(c.Name)
		}
		if boot.IsSynthetic(c.Name) {
			continue
		}
		if c.Major < classfile.Java7 {
			log.WithFields(log.Fields{"class": c.Name, "major": c.Major}).Debug("class predates invokedynamic, skipping")
			continue
		}
		if t.resolver.Excluded(c.Name) {
			log.WithField("class", c.Name).Debug("class excluded from indirection")
			continue
		}
		t.stats.Classes++
		for _, m := range c.Methods {
			if m.Code == nil || len(m.Code.Instructions) == 0 {
				continue
			}
			if t.resolver.ExcludedMethod(c.Name, m.Name, m.Desc) {
				log.WithFields(log.Fields{"class": c.Name, "method": m.Name + m.Desc}).Debug("method excluded from indirection")
				continue
			}
			t.stats.Methods++
			if err := t.rewriteMethod(c, m); err != nil {
				return err
			}
		}
	}
	log.WithFields(log.Fields{
		"classes":    t.stats.Classes,
		"methods":    t.stats.Methods,
		"call_sites": t.stats.CallSites,
		"casts":      t.stats.Casts,
	}).Info("indirection finished")
	return nil
}

func eligible(call *classfile.MethodInsn) bool {
	switch call.Code {
	case classfile.INVOKESTATIC, classfile.INVOKEVIRTUAL, classfile.INVOKEINTERFACE:
		return true
	}
	return false
}

func (t *IndirectionTransformer) rewriteMethod(c *classfile.Class, m *classfile.Method) error {
	keys := cipher.NewKeys(classfile.DecodeModifiedUTF8(c.Name), classfile.DecodeModifiedUTF8(m.Name))
	in := m.Code.Instructions
	out := make([]classfile.Instruction, 0, len(in))
	for i, insn := range in {
		call, ok := insn.(*classfile.MethodInsn)
		if !ok || !eligible(call) {
			out = append(out, insn)
			continue
		}
		var next classfile.Instruction
		if i+1 < len(in) {
			next = in[i+1]
		}
		seq, err := t.rewriteCall(c, m, keys, call, next)
		if err != nil {
			return err
		}
		out = append(out, seq...)
	}
	m.Code.Instructions = out
	return nil
}

func (t *IndirectionTransformer) rewriteCall(c *classfile.Class, m *classfile.Method, keys cipher.Keys, call *classfile.MethodInsn, next classfile.Instruction) ([]classfile.Instruction, error) {
	params, ret, err := classfile.ParseMethodDescriptor(call.Desc)
	if err != nil {
		invariant(c.Name, m.Name, err)
	}
	handle, err := t.ctx.Bootstrap().Handle()
	if err != nil {
		return nil, err
	}

	shape := make([]string, 0, len(params)+1)
	if call.HasReceiver() {
		shape = append(shape, classfile.TypeOf(call.Owner))
	}
	for _, p := range params {
		shape = append(shape, downcast(p))
	}

	indy := &classfile.DynamicInsn{
		Name:      IndyName,
		Desc:      classfile.MethodDescriptor(shape, downcast(ret)),
		Bootstrap: handle,
		Args: []classfile.BootstrapArg{
			classfile.IntArg(call.Code),
			encrypt(keys, classfile.DottedName(call.Owner)),
			encrypt(keys, call.Name),
			encrypt(keys, call.Desc),
		},
	}
	t.stats.CallSites++

	seq := []classfile.Instruction{indy}
	if target := castTarget(ret, next); target != "" {
		seq = append(seq, &classfile.TypeInsn{Code: classfile.CHECKCAST, Type: target})
		t.stats.Casts++
	}
	return seq, nil
}

// downcast widens reference and array types to Object.
func downcast(t string) string {
	if classfile.IsReference(t) {
		return classfile.ObjectType
	}
	return t
}

func encrypt(keys cipher.Keys, raw string) classfile.StringArg {
	return classfile.StringArg(classfile.EncodeModifiedUTF8(keys.Apply(classfile.DecodeModifiedUTF8(raw))))
}

// castTarget returns the internal name to checkcast the Object result of a
// rewritten call to, or "" when no cast is needed. ret is the original return
// descriptor and next the instruction that followed the call.
func castTarget(ret string, next classfile.Instruction) string {
	if !classfile.IsReference(ret) {
		return ""
	}
	if ti, ok := next.(*classfile.TypeInsn); ok && ti.Code == classfile.CHECKCAST {
		return ""
	}
	target := classfile.InternalName(ret)
	if !classfile.IsArray(ret) {
		switch n := next.(type) {
		case *classfile.Op:
			switch n.Code {
			case classfile.POP, classfile.POP2, classfile.RETURN:
				return ""
			}
		case *classfile.JumpInsn:
			if n.Code == classfile.IFNULL || n.Code == classfile.IFNONNULL {
				return ""
			}
		case *classfile.MethodInsn:
			target = consumerType(n, target)
		}
	}
	if target == "java/lang/Object" {
		return ""
	}
	return target
}

// consumerType guesses the type next expects for the value on top of the
// stack: its receiver when it takes no arguments, its last parameter
// otherwise. fallback is returned when neither applies.
func consumerType(next *classfile.MethodInsn, fallback string) string {
	params, _, err := classfile.ParseMethodDescriptor(next.Desc)
	if err != nil {
		return fallback
	}
	if len(params) == 0 {
		if next.HasReceiver() {
			return next.Owner
		}
		return fallback
	}
	if last := params[len(params)-1]; classfile.IsReference(last) {
		return classfile.InternalName(last)
	}
	return fallback
}
