package mac

// ouiVendors maps the first three octets of a hardware address, upper case
// and colon separated, to a vendor name.
var ouiVendors = map[string]string{
	// Virtualization / Hypervisors
	"00:00:5E": "IANA",
	"00:50:56": "VMware",
	"00:0C:29": "VMware",
	"00:05:69": "VMware",
	"00:15:5D": "Hyper-V",
	"00:1C:42": "Parallels",
	"08:00:27": "VirtualBox",
	"52:54:00": "QEMU/KVM",
	"00:16:3E": "Xen",
	"00:03:FF": "Microsoft",
	"00:1D:D8": "Microsoft",
	"28:18:78": "Microsoft",

	// Apple
	"00:03:93": "Apple",
	"00:05:02": "Apple",
	"00:0A:27": "Apple",
	"00:0A:95": "Apple",

	// Samsung
	"00:12:47": "Samsung",
	"00:15:99": "Samsung",
	"00:16:32": "Samsung",
	"00:17:C9": "Samsung",

	// Google
	"00:1A:11": "Google",
	"08:9E:08": "Google",
	"1C:F2:9A": "Google",
	"20:DF:B9": "Google",

	// Huawei
	"00:18:82": "Huawei",
	"00:1E:10": "Huawei",
	"00:25:9E": "Huawei",
	"04:02:1F": "Huawei",

	// Xiaomi
	"00:9E:C8": "Xiaomi",
	"04:CF:8C": "Xiaomi",
	"08:21:EF": "Xiaomi",
	"0C:1D:AF": "Xiaomi",

	// TP-Link
	"00:1D:0F": "TP-Link",
	"14:CF:92": "TP-Link",
	"18:A6:F7": "TP-Link",
	"1C:FA:68": "TP-Link",

	// Ubiquiti
	"00:15:6D": "Ubiquiti",
	"00:27:22": "Ubiquiti",
	"04:18:D6": "Ubiquiti",
	"18:E8:29": "Ubiquiti",

	// MikroTik
	"00:0C:42": "MikroTik",
	"18:FD:74": "MikroTik",
	"2C:C8:1B": "MikroTik",
	"48:8F:5A": "MikroTik",

	// Cisco
	"00:00:0C": "Cisco",
	"00:01:42": "Cisco",
	"00:0B:CD": "Cisco",
	"00:0D:BC": "Cisco",

	// Intel (Wi-Fi / NICs)
	"00:1E:67": "Intel",
	"00:1F:3B": "Intel",
	"00:22:19": "Intel",

	// Dell
	"00:06:5B": "Dell",
	"00:08:74": "Dell",
	"00:0D:56": "Dell",
	"00:0F:1F": "Dell",

	// Hewlett Packard / HP
	"00:01:E6": "HP",
	"00:0E:7F": "HP",
	"00:10:83": "HP",
	"00:11:0A": "HP",

	// Lenovo
	"00:21:CC": "Lenovo",
	"00:23:18": "Lenovo",
	"00:24:BE": "Lenovo",
	"00:26:2D": "Lenovo",

	// Supermicro
	"00:25:90": "Supermicro",
	"00:30:48": "Supermicro",
	"0C:C4:7A": "Supermicro",
	"3C:EC:EF": "Supermicro",

	// ASUS
	"00:0E:C6": "ASUS",
	"00:11:D8": "ASUS",
	"00:13:D4": "ASUS",
	"00:15:F2": "ASUS",

	// NETGEAR
	"00:14:6C": "NETGEAR",
	"00:18:4D": "NETGEAR",
	"00:1B:2F": "NETGEAR",
	"00:1E:2A": "NETGEAR",

	// D-Link
	"00:1E:58": "D-Link",
	"00:1F:3C": "D-Link",
	"00:21:91": "D-Link",
	"00:22:B0": "D-Link",

	// Linksys
	"00:14:BF": "Linksys",
	"00:18:39": "Linksys",
	"00:18:E7": "Linksys",
	"00:1A:70": "Linksys",

	// Synology
	"00:11:32": "Synology",
	"00:1B:21": "Synology",

	// QNAP
	"00:08:9B": "QNAP",
	"24:5E:BE": "QNAP",
	"D4:AE:52": "QNAP",

	// Raspberry Pi Foundation
	"B8:27:EB": "Raspberry Pi",
	"DC:A6:32": "Raspberry Pi",
	"E4:5F:01": "Raspberry Pi",
	"28:CD:C1": "Raspberry Pi",

	// Espressif (ESP8266 / ESP32)
	"18:FE:34": "Espressif",
	"24:0A:C4": "Espressif",
	"2C:F4:32": "Espressif",
	"30:AE:A4": "Espressif",

	// Amazon / Kindle / Echo
	"00:BB:3A": "Amazon",
	"0C:47:C9": "Amazon",
	"18:74:2E": "Amazon",
	"28:EF:01": "Amazon",

	// Sony
	"00:01:4A": "Sony",
	"00:0A:D9": "Sony",
	"00:13:A9": "Sony",
	"00:1A:80": "Sony",

	// Realtek
	"00:E0:4C": "Realtek",
	"00:E0:64": "Realtek",
	"10:7B:44": "Realtek",
	"23:6C:5F": "Realtek",

	// Aruba Networks
	"00:0B:86": "Aruba",
	"00:1A:1E": "Aruba",
	"00:24:6C": "Aruba",
	"04:BD:88": "Aruba",

	// Philips Hue / Signify
	"00:17:88": "Philips Hue",
	"EC:B5:FA": "Philips Hue",

	// Texas Instruments
	"00:12:37": "Texas Instruments",
	"00:17:E9": "Texas Instruments",
	"BC:6A:29": "Texas Instruments",
	"D8:49:2F": "Texas Instruments",

	// Broadcom
	"00:10:18": "Broadcom",
	"00:90:4C": "Broadcom",
	"28:C6:3F": "Broadcom",
	"80:2A:A8": "Broadcom",

	// MediaTek
	"00:0C:E7": "MediaTek",
	"00:90:CC": "MediaTek",
	"14:A3:64": "MediaTek",

	// Qualcomm / Atheros
	"00:03:7F": "Atheros",
	"00:0B:6B": "Atheros",
	"00:E0:22": "Atheros",
	"28:E3:1F": "Qualcomm",

	// Juniper Networks
	"00:05:85": "Juniper",
	"00:10:DB": "Juniper",
	"00:12:1E": "Juniper",
	"00:17:CB": "Juniper",

	// Fortinet
	"00:09:0F": "Fortinet",
	"00:0F:E0": "Fortinet",
	"08:5B:0E": "Fortinet",
	"70:4C:A5": "Fortinet",

	// Palo Alto Networks
	"00:1B:17": "Palo Alto",
	"04:6C:9D": "Palo Alto",
	"58:49:3B": "Palo Alto",
	"84:78:AC": "Palo Alto",

	// Nintendo
	"00:09:BF": "Nintendo",
	"00:16:56": "Nintendo",
	"00:17:AB": "Nintendo",
	"00:19:1D": "Nintendo",

	// LG Electronics
	"00:1C:62": "LG",
	"00:1E:75": "LG",
	"00:22:A9": "LG",
	"00:24:83": "LG",

	// ZTE
	"00:19:C6": "ZTE",
	"00:1E:73": "ZTE",
	"00:22:93": "ZTE",
	"00:26:ED": "ZTE",

	// Zyxel
	"00:13:49": "Zyxel",
	"00:19:CB": "Zyxel",
	"00:1F:A4": "Zyxel",
	"10:92:7C": "Zyxel",

	// Eero / Amazon eero
	"F0:27:2D": "eero",
	"F4:F5:D8": "eero",
}
