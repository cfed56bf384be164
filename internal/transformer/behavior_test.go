package transformer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whit3rabbit/jvmmixer/internal/classfile"
	"github.com/whit3rabbit/jvmmixer/internal/testutil"
)

const behaviorSource = `package demo;

import java.util.ArrayList;
import java.util.Arrays;
import java.util.Collections;
import java.util.List;

public class Main {
    interface Shape { double area(); }

    static final class Square implements Shape {
        private final double side;
        Square(double side) { this.side = side; }
        public double area() { return side * side; }
    }

    private String label = "shapes";

    static int twice(int x) { return x * 2; }

    static int[] sorted(int[] in) {
        int[] out = Arrays.copyOf(in, in.length);
        Arrays.sort(out);
        return out;
    }

    String label() { return label.toUpperCase(); }

    public static void main(String[] args) {
        List<String> names = new ArrayList<String>();
        names.add("b");
        names.add("a");
        Collections.sort(names);
        StringBuilder sb = new StringBuilder();
        for (String n : names) {
            sb.append(n.toUpperCase()).append(',');
        }
        System.out.println(sb.toString());
        System.out.println(twice(21));
        Shape s = new Square(3);
        System.out.println(s.area());
        System.out.println(Arrays.toString(sorted(new int[]{3, 1, 2})));
        System.out.println(new Main().label().length());
        Object o = names.get(0);
        if (o != null) {
            System.out.println(String.valueOf(o).toLowerCase());
        }
    }
}
`

func TestIndirectionPreservesBehavior(t *testing.T) {
	runner := testutil.NewJavaRunner(t)
	runner.SkipIfJavaNotAvailable()
	compiled := runner.Compile(map[string]string{"demo/Main.java": behaviorSource})

	want, err := runner.RunClasses(compiled, "demo.Main")
	require.NoError(t, err, want)

	ctx := newTestContext(t, nil)
	for _, data := range compiled {
		c, err := classfile.Parse(data)
		require.NoError(t, err)
		ctx.reg.AddClass(c)
	}
	tr := NewIndirectionTransformer(ctx)
	require.NoError(t, tr.Process(nil))
	require.True(t, ctx.Bootstrap().Used())
	assert.Greater(t, tr.Stats().CallSites, 10)

	out := map[string][]byte{}
	for _, c := range ctx.reg.Classes() {
		if !ctx.Bootstrap().IsSynthetic(c.Name) {
			ShuffleMembers(c, ctx.Rand())
		}
		data, err := c.Encode(classfile.Full)
		require.NoError(t, err, c.Name)
		out[c.Name+".class"] = data
	}

	got, err := runner.RunClasses(out, "demo.Main")
	require.NoError(t, err, got)
	assert.Equal(t, want, got)
}
