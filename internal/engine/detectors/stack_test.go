package detectors

import "testing"

func TestPHPDynamicCodeStack(t *testing.T) {
	tests := []struct {
		name  string
		stack []string
		want  bool
	}{
		{"eval frame", []string{"/var/www/up.php(2) : eval()'d code"}, true},
		{"create_function", []string{"index.php", "runtime-created function"}, true},
		{"assert", []string{"a", "b", "c", "d", "assert code@1"}, true},
		{"preg_replace e", []string{"regexp code@3"}, true},
		{"call_user_func near top", []string{"a", "b", "x.php@call_user_func"}, true},
		{"call_user_func too deep", []string{"a", "b", "c", "x.php@call_user_func"}, false},
		{"plain stack", []string{"index.php", "lib/db.php"}, false},
		{"empty", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := phpDynamicCodeStack(tt.stack); got != tt.want {
				t.Errorf("phpDynamicCodeStack(%q) = %v, want %v", tt.stack, got, tt.want)
			}
		})
	}
}

func TestJavaReflectedCommand(t *testing.T) {
	hook := []string{"java.lang.ProcessBuilder.start", "java.lang.Runtime.exec"}
	with := func(frames ...string) []string {
		return append(append([]string(nil), hook...), frames...)
	}

	tests := []struct {
		name    string
		stack   []string
		wantHit bool
		wantMsg string
	}{
		{
			name:    "bare reflection",
			stack:   with("java.lang.reflect.Method.invoke", "sun.reflect.NativeMethodAccessorImpl.invoke0"),
			wantHit: true,
			wantMsg: "Reflected command execution - Unknown vulnerability detected",
		},
		{
			name:    "reflection after application code",
			stack:   with("com.example.Jobs.run", "java.lang.reflect.Method.invoke"),
			wantHit: false,
		},
		{
			name:    "ognl gadget",
			stack:   with("ognl.OgnlRuntime.invokeMethod", "com.opensymphony.xwork2.DefaultActionInvocation.invoke"),
			wantHit: true,
			wantMsg: "Reflected command execution - Using OGNL library",
		},
		{
			name:    "last gadget wins",
			stack:   with("ognl.OgnlRuntime.invokeMethod", "com.thoughtworks.xstream.XStream.unmarshal"),
			wantHit: true,
			wantMsg: "Reflected command execution - Using xstream library",
		},
		{
			name:    "ysoserial",
			stack:   with("ysoserial.Pwner326783.<clinit>", "ognl.OgnlRuntime.invokeMethod"),
			wantHit: true,
			wantMsg: "Reflected command execution - Using YsoSerial tool",
		},
		{
			name:    "groovy",
			stack:   with("org.codehaus.groovy.runtime.ProcessGroovyMethods.execute"),
			wantHit: true,
			wantMsg: "Reflected command execution - Using Groovy library",
		},
		{
			name:    "hook frames are skipped",
			stack:   []string{"java.lang.reflect.Method.invoke", "ognl.OgnlRuntime.invokeMethod"},
			wantHit: false,
		},
		{
			name:    "application only",
			stack:   with("com.example.Backup.run", "com.example.Main.main"),
			wantHit: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, hit := javaReflectedCommand(tt.stack)
			if hit != tt.wantHit || msg != tt.wantMsg {
				t.Errorf("javaReflectedCommand() = (%q, %v), want (%q, %v)", msg, hit, tt.wantMsg, tt.wantHit)
			}
		})
	}
}

func TestParseLeadingInt(t *testing.T) {
	tests := []struct {
		in     string
		want   float64
		wantOK bool
	}{
		{"1", 1, true},
		{"12345", 12345, true},
		{"1abc", 1, true},
		{"1.5", 1, true},
		{"-7", -7, true},
		{"+3", 3, true},
		{"0x1f", 31, true},
		{"0X10", 16, true},
		{"0x", 0, false},
		{"abc1", 0, false},
		{"'1'", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := parseLeadingInt(tt.in)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("parseLeadingInt(%q) = (%v, %v), want (%v, %v)", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestIsDecimalInteger(t *testing.T) {
	for in, want := range map[string]bool{
		"2130706433": true,
		"0":          true,
		"":           false,
		"127.0.0.1":  false,
		"0x7f000001": false,
		"12a":        false,
	} {
		if got := isDecimalInteger(in); got != want {
			t.Errorf("isDecimalInteger(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestFormatNumber(t *testing.T) {
	if got := formatNumber(12345); got != "12345" {
		t.Errorf("formatNumber(12345) = %q", got)
	}
	if got := formatNumber(-31); got != "-31" {
		t.Errorf("formatNumber(-31) = %q", got)
	}
}
