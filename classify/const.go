package classify

// Kind is the detected response type.
type Kind string

const (
	KindEmpty              Kind = "Empty Response"
	KindTLSRecord          Kind = "TLS Record"
	KindHTTPResponse       Kind = "HTTP Response"
	KindSSHBanner          Kind = "SSH Banner"
	KindFTPResponse        Kind = "FTP Response"
	KindFirewallMessage    Kind = "Firewall Message"
	KindText               Kind = "Text Response"
	KindConnectSuccess     Kind = "HTTP CONNECT Success"
	KindProxyAuthRequired  Kind = "Proxy Authentication Required"
	KindNullResponse       Kind = "Null Response"
	KindZeroFilledResponse Kind = "Zero-filled Response"
	KindSOCKS5Response     Kind = "SOCKS5 Response"
	KindBinary             Kind = "Binary Data"
)

// Likely sources.
const (
	SourceClosedImmediately = "Connection closed immediately"
	SourceTLSServer         = "TLS Server"
	SourceContentFilter     = "Firewall/Content Filter (HTTP)"
	SourceProxyAuth         = "Proxy Authentication Required"
	SourceProxyServer       = "Proxy Server"
	SourceHTTPServer        = "HTTP Server/Proxy"
	SourceSSHServer         = "SSH Server"
	SourceFTPServer         = "FTP Server"
	SourceCorporateFirewall = "Corporate Firewall"
	SourceUnknownText       = "Unknown Text Server"
	SourceSilentDrop        = "Firewall (Silent Drop with Null)"
	SourcePadding           = "Firewall/IDS (Padding Response)"
	SourceSOCKSProxy        = "SOCKS Proxy"
	SourceUnknownBinary     = "Unknown Binary Protocol"
	SourceLowEntropy        = "Firewall (Low Entropy Response)"
	SourceRandomData        = "Possible Encrypted/Random Data"
)

const (
	// Only this many leading bytes are considered when sniffing text.
	textInspectLimit = 200

	// Null responses shorter than this are the silent-drop signature.
	nullResponseLimit = 10

	// The entropy heuristic needs more than this many bytes.
	minEntropySample = 10

	// Unique-byte ratios outside these bounds refine the Binary Data source.
	// Empirical values, kept as-is.
	lowEntropyRatio  = 0.1
	highEntropyRatio = 0.9

	// Only the first lines are scanned for headers when the data does not
	// parse as an HTTP response.
	headerScanLines = 10

	previewLimit = 200
)

var (
	tlsContentTypes = []byte{0x14, 0x15, 0x16, 0x17, 0x18}

	htmlPrefixes = []string{"HTTP/", "html", "<!DOCTYPE", "<html"}

	// Words that make a plain text reply a firewall message.
	firewallMessageWords = []string{"firewall", "blocked", "denied", "unauthorized"}

	// Keywords reported in FirewallInfo, in report order.
	firewallKeywords = []string{
		"firewall", "blocked", "denied", "forbidden", "unauthorized",
		"filtered", "proxy", "gateway", "security", "violation",
	}

	// First match wins.
	firewallVendors = []string{
		"fortigate", "palo alto", "checkpoint", "cisco", "juniper",
		"sonicwall", "watchguard", "barracuda", "f5", "bluecoat",
		"websense", "symantec", "mcafee", "trend micro",
	}

	headersOfInterest = []string{
		"server", "x-forwarded-by", "via", "x-firewall",
		"x-blocked-by", "x-proxy", "location",
	}
)
