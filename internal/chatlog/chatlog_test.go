package chatlog

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/text/encoding/simplifiedchinese"

	"github.com/example/spake/internal/text"
)

const preamble = "消息记录（此消息记录为文本格式，不支持重新导入）\n" +
	"\n" +
	"================================================================\n" +
	"消息分组:我的好友\n" +
	"================================================================\n" +
	"消息对象:德川\n" +
	"================================================================\n" +
	"\n"

func owner() Identity {
	return Identity{Handles: []string{"253803566"}, Names: []string{"德川"}, ExcludeMarker: "("}
}

func extractor() Extractor {
	e := DefaultExtractor()
	e.Identity = owner()
	return e
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

// ---------------------------------------------------------------------------
// ParseBlocks
// ---------------------------------------------------------------------------

func TestParseBlocks(t *testing.T) {
	lines := []string{
		"stray line before any header",
		"2020-02-16 12:00:01 德川",
		"第一行",
		"第二行",
		"2020-02-16 12:00:05 路人(10001)",
		"",
		"2020-02-16 12:00:09 德川",
	}

	blocks := ParseBlocks(lines)
	if len(blocks) != 3 {
		t.Fatalf("got %d blocks, want 3", len(blocks))
	}

	if blocks[0].Timestamp != "2020-02-16 12:00:01" || blocks[0].Sender != "德川" {
		t.Errorf("block 0 header = %q / %q", blocks[0].Timestamp, blocks[0].Sender)
	}

	if strings.Join(blocks[0].Lines, "|") != "第一行|第二行" {
		t.Errorf("block 0 lines = %q", blocks[0].Lines)
	}

	if blocks[1].Sender != "路人(10001)" || len(blocks[1].Lines) != 1 {
		t.Errorf("block 1 = %+v", blocks[1])
	}

	if len(blocks[2].Lines) != 0 {
		t.Errorf("block 2 lines = %q, want none", blocks[2].Lines)
	}
}

// ---------------------------------------------------------------------------
// Identity
// ---------------------------------------------------------------------------

func TestIdentity_Match(t *testing.T) {
	id := owner()

	tests := []struct {
		sender string
		want   bool
	}{
		{"德川", true},
		{"德川酱", true},
		{"德川(99999)", false},
		{"某人(253803566)", true},
		{"路人(10001)", false},
		{"路人", false},
	}

	for _, tt := range tests {
		if got := id.Match(tt.sender); got != tt.want {
			t.Errorf("Match(%q) = %v, want %v", tt.sender, got, tt.want)
		}
	}
}

func TestIdentity_EmptyMatchesAll(t *testing.T) {
	var id Identity

	for _, sender := range []string{"德川", "路人(10001)", ""} {
		if !id.Match(sender) {
			t.Errorf("empty identity rejected %q", sender)
		}
	}
}

// ---------------------------------------------------------------------------
// CleanLine
// ---------------------------------------------------------------------------

func TestCleanLine(t *testing.T) {
	e := DefaultExtractor()

	tests := []struct {
		name   string
		input  string
		want   string
		wantOK bool
	}{
		{"plain sentence kept", "今天的天气真的非常非常好啊", "今天的天气真的非常非常好啊", true},
		{"punctuation removed", "“今天（周日）的天气真的非常非常好啊！”", "今天周日的天气真的非常非常好啊", true},
		{"mention removed", "@小明 你明天下午要不要一起去图书馆", "你明天下午要不要一起去图书馆", true},
		{"stickers removed", "[图片][表情]我们明天下午一起去图书馆吧/抱抱", "我们明天下午一起去图书馆吧", true},
		{"flash image notice", "[闪照]请使用新版手机QQ查看闪照", "", false},
		{"auto reply", "[自动回复]您好，我现在有事不在，一会再和您联系", "", false},
		{"blocked notice", "对方已拒收了您的消息并且不想理你了哈哈", "", false},
		{"not a friend notice", "对方不想和你说话并且把你拉黑了真是太惨了", "", false},
		{"numeric", "123456789012345", "", false},
		{"full-width numeric", "１２３４５６７８９０１２３", "", false},
		{"too short after cleaning", "你好！！！！！！！！！", "", false},
		{"exactly min chars", "一二三四五六七八九十一二", "一二三四五六七八九十一二", true},
		{"surrounding spaces trimmed", "   一二三四五六七八九十一二   ", "一二三四五六七八九十一二", true},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := e.CleanLine(tt.input)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("CleanLine(%q) = %q, %v; want %q, %v", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Extract
// ---------------------------------------------------------------------------

func TestExtract_SkipsPreambleAndOtherSenders(t *testing.T) {
	content := preamble +
		"2020-02-16 12:00:01 德川\n" +
		"这是德川自己说的一句足够长的话\n" +
		"短\n" +
		"2020-02-16 12:00:05 路人(10001)\n" +
		"这是别人说的一句足够长的话不应保留\n" +
		"2020-02-16 12:01:00 德川\r\n" +
		"第二句也是德川说的足够长的话\r\n"

	got := extractor().Extract(content)

	want := []string{"这是德川自己说的一句足够长的话", "第二句也是德川说的足够长的话"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("Extract = %q, want %q", got, want)
	}
}

func TestExtract_BOMAndCRLFPreamble(t *testing.T) {
	content := "\ufeff" + strings.ReplaceAll(preamble, "\n", "\r\n") +
		"2020-02-16 12:00:01 德川\r\n" +
		"这是德川自己说的一句足够长的话\r\n"

	got := extractor().Extract(content)
	if len(got) != 1 || got[0] != "这是德川自己说的一句足够长的话" {
		t.Errorf("Extract = %q", got)
	}
}

func TestExtract_HeaderInsidePreambleIgnored(t *testing.T) {
	content := "2020-01-01 00:00:00 德川\n这一行在导出说明里面所以要忽略掉\n" +
		strings.Repeat("\n", 6) +
		"2020-02-16 12:00:01 德川\n这一行才是真正的聊天内容要保留\n"

	got := extractor().Extract(content)
	if len(got) != 1 || got[0] != "这一行才是真正的聊天内容要保留" {
		t.Errorf("Extract = %q", got)
	}
}

// ---------------------------------------------------------------------------
// ExtractDir
// ---------------------------------------------------------------------------

func TestExtractDir(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "dechuan")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}

	writeFile(t, filepath.Join(dir, "a.txt"), preamble+
		"2020-02-16 12:00:01 德川\n"+
		"咱们周末一起去爬山好不好呀\n"+
		"123456789012345\n"+
		"2020-02-16 12:00:02 德川\n"+
		"昨天晚上的电影真的特别好看\n")

	writeFile(t, filepath.Join(dir, "b.txt"), preamble+
		"2020-03-01 08:00:00 德川\n"+
		"咱们周末一起去爬山好不好呀\n"+
		"2020-03-01 08:00:30 路人(10001)\n"+
		"这句话来自别人所以不会被保留下来\n")

	gb, err := simplifiedchinese.GB18030.NewEncoder().String(preamble +
		"2020-03-02 09:00:00 德川\n" +
		"这个文件是用国标编码保存的聊天记录\n")
	if err != nil {
		t.Fatalf("encode gb18030: %v", err)
	}
	writeFile(t, filepath.Join(dir, "c.txt"), gb)

	if err := os.Mkdir(filepath.Join(dir, "nested"), 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}

	res, err := extractor().ExtractDir(dir)
	if err != nil {
		t.Fatalf("ExtractDir: %v", err)
	}

	wantPath := filepath.Join(root, "dechuan.txt")
	if res.Path != wantPath {
		t.Errorf("Path = %q, want %q", res.Path, wantPath)
	}

	if res.Files != 3 || len(res.Failed) != 0 {
		t.Errorf("Files = %d, Failed = %v", res.Files, res.Failed)
	}

	data, err := os.ReadFile(wantPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	want := []string{
		"咱们周末一起去爬山好不好呀",
		"昨天晚上的电影真的特别好看",
		"这个文件是用国标编码保存的聊天记录",
	}
	// Lexicographic byte order of the UTF-8 text.
	if string(data) != strings.Join(sortedCopy(want), "\n")+"\n" {
		t.Errorf("corpus =\n%s", data)
	}

	if res.Lines != 3 {
		t.Errorf("Lines = %d, want 3", res.Lines)
	}
}

func TestExtractDir_SkipsUndecodable(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "logs")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}

	writeFile(t, filepath.Join(dir, "good.txt"), preamble+"2020-02-16 12:00:01 德川\n一句足够长的可以被保留下来的话\n")
	writeFile(t, filepath.Join(dir, "bad.txt"), "\xff\xfe\xfd")

	e := extractor()
	e.Encodings = []string{"utf-8"}

	res, err := e.ExtractDir(dir)
	if err != nil {
		t.Fatalf("ExtractDir: %v", err)
	}

	if res.Files != 1 || len(res.Failed) != 1 {
		t.Fatalf("Files = %d, Failed = %v", res.Files, res.Failed)
	}

	if !errors.Is(res.Failed[0], text.ErrDecode) || filepath.Base(res.Failed[0].Path) != "bad.txt" {
		t.Errorf("Failed[0] = %v", res.Failed[0])
	}
}

func TestExtractDir_Missing(t *testing.T) {
	if _, err := extractor().ExtractDir(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("ExtractDir of a missing directory succeeded")
	}
}

func sortedCopy(s []string) []string {
	out := append([]string(nil), s...)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j] < out[j-1]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}

	return out
}
