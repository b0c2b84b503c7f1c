package detectors

import "regexp"

// Algorithm names, as they appear in the algorithm config.
const (
	AlgSQLiUserInput = "sqli_userinput"
	AlgSQLiDBManager = "sqli_dbmanager"
	AlgSQLiPolicy    = "sqli_policy"

	AlgSSRFUserInput = "ssrf_userinput"
	AlgSSRFCommon    = "ssrf_common"
	AlgSSRFAWS       = "ssrf_aws"
	AlgSSRFObfuscate = "ssrf_obfuscate"
	AlgSSRFProtocol  = "ssrf_protocol"

	AlgReadFileForceful          = "readFile_forceful"
	AlgReadFileUnwanted          = "readFile_unwanted"
	AlgReadFileTraversal         = "readFile_traversal"
	AlgReadFileUserInput         = "readFile_userinput"
	AlgReadFileUserInputHTTP     = "readFile_userinput_http"
	AlgReadFileUserInputUnwanted = "readFile_userinput_unwanted"

	AlgWriteFileNTFS      = "writeFile_NTFS"
	AlgWriteFilePUTScript = "writeFile_PUT_script"
	AlgWriteFileScript    = "writeFile_script"

	AlgRenameWebshell = "rename_webshell"

	AlgDirectoryReflect        = "directory_reflect"
	AlgDirectoryUnwanted       = "directory_unwanted"
	AlgDirectoryOutsideWebroot = "directory_outsideWebroot"

	AlgIncludeProtocol       = "include_protocol"
	AlgIncludeOutsideWebroot = "include_outsideWebroot"

	AlgXXEProtocol = "xxe_protocol"
	AlgXXEFile     = "xxe_file"

	AlgFileUploadWebDAV    = "fileUpload_webdav"
	AlgFileUploadMultipart = "fileUpload_multipart"

	AlgOGNLExec = "ognl_exec"

	AlgCommandReflect   = "command_reflect"
	AlgCommandUserInput = "command_userinput"
	AlgCommandOther     = "command_other"

	AlgTransformerDeserialize = "transformer_deser"
)

// SQL policy feature flags.
const (
	FeatureStackedQuery      = "stacked_query"
	FeatureNoHex             = "no_hex"
	FeatureVersionComment    = "version_comment"
	FeatureFunctionBlacklist = "function_blacklist"
	FeatureUnionNull         = "union_null"
	FeatureConstantCompare   = "constant_compare"
	FeatureIntoOutfile       = "into_outfile"
)

// Default thresholds used when an entry has no min_length.
const (
	DefaultSQLiMinLength = 15
	DefaultOGNLMinLength = 30
)

var (
	// Archives and dumps a scanner tries to download.
	dotFilesRegex = regexp.MustCompile(`\.(7z|tar|gz|bz2|xz|rar|zip|sql|db|sqlite)$`)

	// Extensions a web server may execute. Trailing dot covers Windows.
	scriptFileRegex = regexp.MustCompile(`(?i)\.(aspx?|jspx?|php[345]?|phtml)\.?$`)

	// NTFS alternate data streams worth writing to.
	ntfsRegex = regexp.MustCompile(`(?i)::\$(DATA|INDEX)$`)
)

// Files most often fetched by forceful browsing.
var unwantedFilenames = map[string]bool{
	".DS_Store":          true,
	"id_rsa":             true,
	"id_rsa.pub":         true,
	"known_hosts":        true,
	"authorized_keys":    true,
	".bash_history":      true,
	".csh_history":       true,
	".zsh_history":       true,
	".mysql_history":     true,
	".htaccess":          true,
	".user.ini":          true,
	"web.config":         true,
	"web.xml":            true,
	"build.property.xml": true,
	"bower.json":         true,
	"Gemfile":            true,
	"Gemfile.lock":       true,
	".gitignore":         true,
	"error_log":          true,
	"error.log":          true,
	"nohup.out":          true,
}

// Directories a webshell file manager lists first.
var unwantedDirectories = map[string]bool{
	"/":                true,
	"/home":            true,
	"/var/log":         true,
	"/private/var/log": true,
	"/proc":            true,
	"/sys":             true,
	`C:\`:              true,
	`D:\`:              true,
	`E:\`:              true,
}

// Files a webshell reads first. Compared lower-cased.
var unwantedAbsolutePaths = map[string]bool{
	"/etc/shadow":               true,
	"/etc/passwd":               true,
	"/etc/hosts":                true,
	"/etc/apache2/apache2.conf": true,
	"/root/.bash_history":       true,
	"/root/.bash_profile":       true,
	`c:\windows\system32\inetsrv\metabase.xml`: true,
	`c:\windows\system32\drivers\etc\hosts`:    true,
}

// Upload filenames that reconfigure Apache or PHP.
var serverConfigFilenames = map[string]bool{
	".htaccess": true,
	".user.ini": true,
}

// Substrings of common Struts OGNL exploit payloads.
var ognlPayloads = []string{
	"ognl.OgnlContext",
	"ognl.TypeConverter",
	"ognl.MemberAccess",
	"_memberAccess",
	"ognl.ClassResolver",
	"java.lang.Runtime",
	"java.lang.Class",
	"java.lang.ClassLoader",
	"java.lang.System",
	"java.lang.ProcessBuilder",
	"java.lang.Object",
	"java.lang.Shutdown",
	"java.io.File",
	"javax.script.ScriptEngineManager",
	"com.opensymphony.xwork2.ActionContext",
}

// Classes that only show up in deserialization gadget chains.
var deserializationBlacklist = map[string]bool{
	"org.apache.commons.collections.functors.InvokerTransformer":      true,
	"org.apache.commons.collections.functors.InstantiateTransformer":  true,
	"org.apache.commons.collections4.functors.InvokerTransformer":     true,
	"org.apache.commons.collections4.functors.InstantiateTransformer": true,
	"org.codehaus.groovy.runtime.ConvertedClosure":                    true,
	"org.codehaus.groovy.runtime.MethodClosure":                       true,
	"org.springframework.beans.factory.ObjectFactory":                 true,
	"xalan.internal.xsltc.trax.TemplatesImpl":                         true,
}

// Private ranges checked for user supplied SSRF targets.
var intranetPrefixes = []string{"127.", "192.", "172.", "10."}

const awsMetadataHost = "169.254.169.254"
