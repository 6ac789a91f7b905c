package evidence

import "testing"

func TestParseKindClosesOverRawTags(t *testing.T) {
	cases := map[string]Kind{
		"zombie":      KindZombie,
		"husk":        KindZombie,
		"cave_spider": KindSpider,
		"cow":         KindLivestock,
		"warden":      KindUnknown,
		"":            KindUnknown,
	}
	for raw, want := range cases {
		if got := ParseKind(raw); got != want {
			t.Fatalf("ParseKind(%q) = %s, want %s", raw, got, want)
		}
	}
}

func TestParseLOSDegradesToUnknown(t *testing.T) {
	if ParseLOS("visible") != LOSVisible {
		t.Fatal("visible not recognized")
	}
	if ParseLOS("blocked") != LOSBlocked {
		t.Fatal("blocked not recognized")
	}
	if ParseLOS("occluded-maybe") != LOSUnknown {
		t.Fatal("unrecognized LOS should degrade to unknown")
	}
}

func TestIsKindMatchesEnum(t *testing.T) {
	for _, k := range Kinds() {
		if !IsKind(string(k)) {
			t.Fatalf("enum value %s not recognized", k)
		}
	}
	if IsKind("husk") {
		t.Fatal("raw tag husk is not an enum value")
	}
}
