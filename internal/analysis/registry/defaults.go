package registry

import "github.com/xkilldash9x/lancet/internal/analysis/core"

// Built-in knowledge bases. Qualified paths are matched exactly against the
// flattened call path produced by the language adapters; there is no fuzzy
// matching, so variants the application aliases away are simply not seen.

func defaultPythonBuilder() *Builder {
	b := NewBuilder()

	// -- Sources --
	for _, s := range []SourceInfo{
		{Name: "input", Category: core.SourceUserInput, Level: core.LevelHigh},
		{Name: "raw_input", Category: core.SourceUserInput, Level: core.LevelHigh},
		{Name: "sys.stdin.read", Category: core.SourceUserInput, Level: core.LevelHigh},
		{Name: "sys.stdin.readline", Category: core.SourceUserInput, Level: core.LevelHigh},

		// Flask / Werkzeug request surface.
		{Name: "request.args.get", Category: core.SourceNetwork, Level: core.LevelHigh},
		{Name: "request.form.get", Category: core.SourceNetwork, Level: core.LevelHigh},
		{Name: "request.values.get", Category: core.SourceNetwork, Level: core.LevelHigh},
		{Name: "request.cookies.get", Category: core.SourceNetwork, Level: core.LevelHigh},
		{Name: "request.headers.get", Category: core.SourceNetwork, Level: core.LevelHigh},
		{Name: "request.get_json", Category: core.SourceNetwork, Level: core.LevelHigh},
		{Name: "flask.request.args.get", Category: core.SourceNetwork, Level: core.LevelHigh},
		{Name: "flask.request.form.get", Category: core.SourceNetwork, Level: core.LevelHigh},

		// Django request surface.
		{Name: "request.GET.get", Category: core.SourceNetwork, Level: core.LevelHigh},
		{Name: "request.POST.get", Category: core.SourceNetwork, Level: core.LevelHigh},

		// Sockets.
		{Name: "socket.recv", Category: core.SourceNetwork, Level: core.LevelHigh},
		{Name: "conn.recv", Category: core.SourceNetwork, Level: core.LevelHigh},

		// Environment and process arguments.
		{Name: "os.getenv", Category: core.SourceEnvironment, Level: core.LevelMedium},
		{Name: "os.environ.get", Category: core.SourceEnvironment, Level: core.LevelMedium},

		// File contents.
		{Name: "f.read", Category: core.SourceFile, Level: core.LevelMedium},
		{Name: "f.readline", Category: core.SourceFile, Level: core.LevelMedium},
		{Name: "f.readlines", Category: core.SourceFile, Level: core.LevelMedium},

		// Database reads.
		{Name: "cursor.fetchone", Category: core.SourceDatabase, Level: core.LevelMedium},
		{Name: "cursor.fetchall", Category: core.SourceDatabase, Level: core.LevelMedium},
		{Name: "cursor.fetchmany", Category: core.SourceDatabase, Level: core.LevelMedium},
	} {
		b.AddSource(s)
	}

	// -- Sinks --
	for _, s := range []SinkInfo{
		// SQL execution.
		{Name: "cursor.execute", Type: core.SinkSQLQuery, ArgIndexes: []int{0}},
		{Name: "cursor.executemany", Type: core.SinkSQLQuery, ArgIndexes: []int{0}},
		{Name: "cursor.executescript", Type: core.SinkSQLQuery, ArgIndexes: []int{0}},
		{Name: "conn.execute", Type: core.SinkSQLQuery, ArgIndexes: []int{0}},
		{Name: "db.execute", Type: core.SinkSQLQuery, ArgIndexes: []int{0}},
		{Name: "session.execute", Type: core.SinkSQLQuery, ArgIndexes: []int{0}},

		// Shell execution.
		{Name: "os.system", Type: core.SinkShellCommand, ArgIndexes: []int{0}},
		{Name: "os.popen", Type: core.SinkShellCommand, ArgIndexes: []int{0}},
		{Name: "subprocess.run", Type: core.SinkShellCommand, ArgIndexes: []int{0}},
		{Name: "subprocess.call", Type: core.SinkShellCommand, ArgIndexes: []int{0}},
		{Name: "subprocess.check_call", Type: core.SinkShellCommand, ArgIndexes: []int{0}},
		{Name: "subprocess.check_output", Type: core.SinkShellCommand, ArgIndexes: []int{0}},
		{Name: "subprocess.Popen", Type: core.SinkShellCommand, ArgIndexes: []int{0}},

		// Dynamic code evaluation.
		{Name: "eval", Type: core.SinkCodeEval, ArgIndexes: []int{0}},
		{Name: "exec", Type: core.SinkCodeEval, ArgIndexes: []int{0}},
		{Name: "compile", Type: core.SinkCodeEval, ArgIndexes: []int{0}},

		// Outbound requests (SSRF).
		{Name: "requests.get", Type: core.SinkSSRF, ArgIndexes: []int{0}},
		{Name: "requests.post", Type: core.SinkSSRF, ArgIndexes: []int{0}},
		{Name: "requests.put", Type: core.SinkSSRF, ArgIndexes: []int{0}},
		{Name: "requests.delete", Type: core.SinkSSRF, ArgIndexes: []int{0}},
		{Name: "requests.head", Type: core.SinkSSRF, ArgIndexes: []int{0}},
		{Name: "requests.request", Type: core.SinkSSRF, ArgIndexes: []int{1}},
		{Name: "urllib.request.urlopen", Type: core.SinkSSRF, ArgIndexes: []int{0}},
		{Name: "httpx.get", Type: core.SinkSSRF, ArgIndexes: []int{0}},
		{Name: "httpx.post", Type: core.SinkSSRF, ArgIndexes: []int{0}},

		// XML parsing (XXE).
		{Name: "lxml.etree.fromstring", Type: core.SinkXXE, ArgIndexes: []int{0}},
		{Name: "lxml.etree.XML", Type: core.SinkXXE, ArgIndexes: []int{0}},
		{Name: "etree.fromstring", Type: core.SinkXXE, ArgIndexes: []int{0}},
		{Name: "xml.dom.minidom.parseString", Type: core.SinkXXE, ArgIndexes: []int{0}},
		{Name: "xml.etree.ElementTree.fromstring", Type: core.SinkXXE, ArgIndexes: []int{0}},
		{Name: "xml.sax.parseString", Type: core.SinkXXE, ArgIndexes: []int{0}},

		// Template rendering (SSTI).
		{Name: "flask.render_template_string", Type: core.SinkSSTI, ArgIndexes: []int{0}},
		{Name: "render_template_string", Type: core.SinkSSTI, ArgIndexes: []int{0}},
		{Name: "jinja2.Template", Type: core.SinkSSTI, ArgIndexes: []int{0}},
		{Name: "Template", Type: core.SinkSSTI, ArgIndexes: []int{0}},
		{Name: "template.render", Type: core.SinkSSTI},

		// Weak cryptography. The argument itself is what gets hashed, so any
		// tainted/attacker-influenced input flowing into a weak digest flags.
		{Name: "hashlib.md5", Type: core.SinkWeakCrypto, ArgIndexes: []int{0}},
		{Name: "hashlib.sha1", Type: core.SinkWeakCrypto, ArgIndexes: []int{0}},
		{Name: "Crypto.Cipher.DES.new", Type: core.SinkWeakCrypto, ArgIndexes: []int{0}},
		{Name: "Crypto.Cipher.ARC4.new", Type: core.SinkWeakCrypto, ArgIndexes: []int{0}},

		// Filesystem access.
		{Name: "open", Type: core.SinkPathTraversal, ArgIndexes: []int{0}},
		{Name: "os.remove", Type: core.SinkPathTraversal, ArgIndexes: []int{0}},
		{Name: "os.unlink", Type: core.SinkPathTraversal, ArgIndexes: []int{0}},
		{Name: "shutil.rmtree", Type: core.SinkPathTraversal, ArgIndexes: []int{0}},
		{Name: "send_file", Type: core.SinkPathTraversal, ArgIndexes: []int{0}},

		// Deserialization.
		{Name: "pickle.loads", Type: core.SinkDeserialization, ArgIndexes: []int{0}},
		{Name: "pickle.load", Type: core.SinkDeserialization, ArgIndexes: []int{0}},
		{Name: "marshal.loads", Type: core.SinkDeserialization, ArgIndexes: []int{0}},
		{Name: "yaml.load", Type: core.SinkDeserialization, ArgIndexes: []int{0}},
		{Name: "yaml.unsafe_load", Type: core.SinkDeserialization, ArgIndexes: []int{0}},
		{Name: "dill.loads", Type: core.SinkDeserialization, ArgIndexes: []int{0}},

		// LDAP.
		{Name: "conn.search", Type: core.SinkLDAPQuery},
		{Name: "conn.search_s", Type: core.SinkLDAPQuery},
		{Name: "ldap.search_s", Type: core.SinkLDAPQuery},

		// Redirects and headers.
		{Name: "flask.redirect", Type: core.SinkOpenRedirect, ArgIndexes: []int{0}},
		{Name: "redirect", Type: core.SinkOpenRedirect, ArgIndexes: []int{0}},
		{Name: "response.headers.add", Type: core.SinkHeaderInjection},
		{Name: "resp.headers.add", Type: core.SinkHeaderInjection},

		// Logging.
		{Name: "logging.info", Type: core.SinkLogInjection},
		{Name: "logging.warning", Type: core.SinkLogInjection},
		{Name: "logging.error", Type: core.SinkLogInjection},
		{Name: "logger.info", Type: core.SinkLogInjection},
		{Name: "logger.warning", Type: core.SinkLogInjection},
		{Name: "logger.error", Type: core.SinkLogInjection},
	} {
		b.AddSink(s)
	}

	// -- Sanitizers --
	injectionSinks := []core.SinkType{
		core.SinkSQLQuery, core.SinkShellCommand, core.SinkCodeEval,
		core.SinkSSTI, core.SinkSSRF, core.SinkPathTraversal,
		core.SinkXXE, core.SinkLDAPQuery, core.SinkNoSQLQuery,
		core.SinkHeaderInjection, core.SinkLogInjection,
		core.SinkOpenRedirect, core.SinkHTMLInjection,
	}
	for _, s := range []SanitizerInfo{
		{Name: "shlex.quote", Clears: []core.SinkType{core.SinkShellCommand}},
		{Name: "pipes.quote", Clears: []core.SinkType{core.SinkShellCommand}},
		{Name: "html.escape", Clears: []core.SinkType{core.SinkSSTI, core.SinkHTMLInjection}},
		{Name: "markupsafe.escape", Clears: []core.SinkType{core.SinkSSTI, core.SinkHTMLInjection}},
		{Name: "cgi.escape", Clears: []core.SinkType{core.SinkSSTI, core.SinkHTMLInjection}},
		{Name: "urllib.parse.quote", Clears: []core.SinkType{core.SinkHeaderInjection, core.SinkLogInjection}},
		{Name: "urllib.parse.quote_plus", Clears: []core.SinkType{core.SinkHeaderInjection, core.SinkLogInjection}},
		{Name: "os.path.basename", Clears: []core.SinkType{core.SinkPathTraversal}},
		{Name: "werkzeug.utils.secure_filename", Clears: []core.SinkType{core.SinkPathTraversal}},
		{Name: "secure_filename", Clears: []core.SinkType{core.SinkPathTraversal}},
		{Name: "re.escape", Clears: []core.SinkType{core.SinkLDAPQuery}},
		{Name: "psycopg2.extensions.quote_ident", Clears: []core.SinkType{core.SinkSQLQuery}},
		{Name: "sqlalchemy.text", Clears: []core.SinkType{}},

		// Numeric coercion neutralizes string-shaped payloads entirely.
		{Name: "int", Clears: injectionSinks},
		{Name: "float", Clears: injectionSinks},
	} {
		b.AddSanitizer(s)
	}

	return b
}

func defaultJavaScriptBuilder() *Builder {
	b := NewBuilder()

	for _, s := range []SourceInfo{
		{Name: "location.hash", Category: core.SourceUserInput, Level: core.LevelHigh},
		{Name: "location.search", Category: core.SourceUserInput, Level: core.LevelHigh},
		{Name: "location.href", Category: core.SourceUserInput, Level: core.LevelHigh},
		{Name: "document.cookie", Category: core.SourceUserInput, Level: core.LevelHigh},
		{Name: "document.referrer", Category: core.SourceUserInput, Level: core.LevelHigh},
		{Name: "window.name", Category: core.SourceUserInput, Level: core.LevelHigh},
		{Name: "localStorage.getItem", Category: core.SourceUserInput, Level: core.LevelMedium},
		{Name: "sessionStorage.getItem", Category: core.SourceUserInput, Level: core.LevelMedium},
		{Name: "process.env", Category: core.SourceEnvironment, Level: core.LevelMedium},
		{Name: "req.query", Category: core.SourceNetwork, Level: core.LevelHigh},
		{Name: "req.body", Category: core.SourceNetwork, Level: core.LevelHigh},
		{Name: "req.params", Category: core.SourceNetwork, Level: core.LevelHigh},
		{Name: "fs.readFileSync", Category: core.SourceFile, Level: core.LevelMedium},
	} {
		b.AddSource(s)
	}

	for _, s := range []SinkInfo{
		{Name: "eval", Type: core.SinkCodeEval, ArgIndexes: []int{0}},
		{Name: "Function", Type: core.SinkCodeEval, ArgIndexes: []int{0}},
		{Name: "setTimeout", Type: core.SinkCodeEval, ArgIndexes: []int{0}},
		{Name: "setInterval", Type: core.SinkCodeEval, ArgIndexes: []int{0}},
		{Name: "child_process.exec", Type: core.SinkShellCommand, ArgIndexes: []int{0}},
		{Name: "child_process.execSync", Type: core.SinkShellCommand, ArgIndexes: []int{0}},
		{Name: "child_process.spawn", Type: core.SinkShellCommand, ArgIndexes: []int{0}},
		{Name: "document.write", Type: core.SinkHTMLInjection, ArgIndexes: []int{0}},
		{Name: "document.writeln", Type: core.SinkHTMLInjection, ArgIndexes: []int{0}},
		{Name: "db.query", Type: core.SinkSQLQuery, ArgIndexes: []int{0}},
		{Name: "pool.query", Type: core.SinkSQLQuery, ArgIndexes: []int{0}},
		{Name: "connection.query", Type: core.SinkSQLQuery, ArgIndexes: []int{0}},
		{Name: "fetch", Type: core.SinkSSRF, ArgIndexes: []int{0}},
		{Name: "axios.get", Type: core.SinkSSRF, ArgIndexes: []int{0}},
		{Name: "axios.post", Type: core.SinkSSRF, ArgIndexes: []int{0}},
		{Name: "http.get", Type: core.SinkSSRF, ArgIndexes: []int{0}},
		{Name: "fs.readFile", Type: core.SinkPathTraversal, ArgIndexes: []int{0}},
		{Name: "fs.readFileSync", Type: core.SinkPathTraversal, ArgIndexes: []int{0}},
		{Name: "fs.unlinkSync", Type: core.SinkPathTraversal, ArgIndexes: []int{0}},
		{Name: "res.redirect", Type: core.SinkOpenRedirect, ArgIndexes: []int{0}},
		{Name: "JSON.parse", Type: core.SinkDeserialization, ArgIndexes: []int{0}},
		{Name: "crypto.createHash", Type: core.SinkWeakCrypto},
		{Name: "console.log", Type: core.SinkLogInjection},
	} {
		b.AddSink(s)
	}

	for _, s := range []SanitizerInfo{
		{Name: "encodeURIComponent", Clears: []core.SinkType{core.SinkSSRF, core.SinkOpenRedirect, core.SinkHeaderInjection}},
		{Name: "encodeURI", Clears: []core.SinkType{core.SinkSSRF, core.SinkOpenRedirect}},
		{Name: "DOMPurify.sanitize", Clears: []core.SinkType{core.SinkHTMLInjection}},
		{Name: "parseInt", Clears: []core.SinkType{
			core.SinkSQLQuery, core.SinkShellCommand, core.SinkCodeEval,
			core.SinkHTMLInjection, core.SinkSSRF, core.SinkPathTraversal,
			core.SinkOpenRedirect,
		}},
		{Name: "parseFloat", Clears: []core.SinkType{
			core.SinkSQLQuery, core.SinkShellCommand, core.SinkCodeEval,
			core.SinkHTMLInjection, core.SinkSSRF, core.SinkPathTraversal,
			core.SinkOpenRedirect,
		}},
		{Name: "path.basename", Clears: []core.SinkType{core.SinkPathTraversal}},
	} {
		b.AddSanitizer(s)
	}

	return b
}
