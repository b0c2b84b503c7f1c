package detectors

import (
	"strings"

	"github.com/triage-ai/palisade-rasp/internal/engine"
)

// stackInspector looks for evidence of an attack in a call stack and
// returns the message to report.
type stackInspector func(stack []string) (string, bool)

// Reflected command execution strategies, keyed by host runtime.
var reflectedCommandInspectors = map[engine.RuntimeProfile]stackInspector{
	engine.RuntimeJava: javaReflectedCommand,
	engine.RuntimePHP: func(stack []string) (string, bool) {
		if phpDynamicCodeStack(stack) {
			return "WebShell activity - Detected reflected command execution", true
		}
		return "", false
	},
}

// File manager detection only has stack evidence on PHP.
var fileManagerInspectors = map[engine.RuntimeProfile]stackInspector{
	engine.RuntimePHP: func(stack []string) (string, bool) {
		if phpDynamicCodeStack(stack) {
			return "WebShell activity - Using file manager function with China Chopper WebShell", true
		}
		return "", false
	},
}

// Frame markers left by eval, assert, create_function and preg_replace /e.
var phpDynamicCodeMarkers = []string{
	"eval()'d code",
	"runtime-created function",
	"assert code@",
	"regexp code@",
}

const (
	phpCallUserFunc      = "@call_user_func"
	phpCallUserFuncDepth = 3
)

// phpDynamicCodeStack reports whether any frame comes from dynamically
// evaluated code, or call_user_func appears in the first three frames.
func phpDynamicCodeStack(stack []string) bool {
	for i, frame := range stack {
		for _, marker := range phpDynamicCodeMarkers {
			if strings.Contains(frame, marker) {
				return true
			}
		}
		if i < phpCallUserFuncDepth && strings.Contains(frame, phpCallUserFunc) {
			return true
		}
	}
	return false
}

const javaMethodInvoke = "java.lang.reflect.Method.invoke"

// Entry points of known command execution gadget chains.
var javaCommandGadgets = map[string]string{
	javaMethodInvoke:                                                               "Reflected command execution - Unknown vulnerability detected",
	"ognl.OgnlRuntime.invokeMethod":                                                "Reflected command execution - Using OGNL library",
	"com.thoughtworks.xstream.XStream.unmarshal":                                   "Reflected command execution - Using xstream library",
	"org.apache.commons.collections4.functors.InvokerTransformer.transform":        "Reflected command execution - Using Transformer library",
	"org.jolokia.jsr160.Jsr160RequestDispatcher.dispatchRequest":                   "Reflected command execution - Using JNDI library",
	"com.alibaba.fastjson.parser.deserializer.JavaBeanDeserializer.deserialze":     "Reflected command execution - Using fastjson library",
	"org.springframework.expression.spel.support.ReflectiveMethodExecutor.execute": "Reflected command execution - Using SpEL expressions",
	"freemarker.template.utility.Execute.exec":                                     "Reflected command execution - Using FreeMarker template",
}

// Tool signatures reported as soon as they are seen.
const (
	javaYsoserialPrefix = "ysoserial.Pwner"
	javaGroovyExecute   = "org.codehaus.groovy.runtime.ProcessGroovyMethods.execute"
)

// Frames from the JDK itself never count as application code.
var javaTrustedPrefixes = []string{"java.", "sun.", "com.sun."}

// javaReflectedCommand walks the stack from frame 2 (frames 0 and 1 are
// the hook itself). The last matching gadget in the walk wins. A Method.invoke
// frame is ignored once application code has been seen, since the
// application then chose to run the command itself.
func javaReflectedCommand(stack []string) (string, bool) {
	var (
		userCode bool
		message  string
	)
	for i := 2; i < len(stack); i++ {
		method := stack[i]

		if strings.HasPrefix(method, javaYsoserialPrefix) {
			return "Reflected command execution - Using YsoSerial tool", true
		}
		if method == javaGroovyExecute {
			return "Reflected command execution - Using Groovy library", true
		}

		if !hasAnyPrefix(method, javaTrustedPrefixes) {
			userCode = true
		}

		known, ok := javaCommandGadgets[method]
		if !ok {
			continue
		}
		if userCode && method == javaMethodInvoke {
			continue
		}
		message = known
	}
	return message, message != ""
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
