package ident

// Reserved lists Lua 5.1-5.4 and Luau keywords plus the globals emitted
// artifacts reference. None of them is ever issued.
var Reserved = []string{
	// keywords
	"and", "break", "do", "else", "elseif", "end", "false", "for", "function",
	"goto", "if", "in", "local", "nil", "not", "or", "repeat", "return", "then",
	"true", "until", "while",
	// Luau contextual keywords
	"continue", "export", "type", "typeof",
	// runtime globals
	"_G", "_ENV", "_VERSION", "assert", "bit32", "collectgarbage", "coroutine",
	"debug", "error", "game", "getfenv", "getmetatable", "io", "ipairs", "load",
	"loadstring", "math", "next", "os", "pairs", "pcall", "print", "rawequal",
	"rawget", "rawlen", "rawset", "require", "select", "self", "setfenv",
	"setmetatable", "string", "table", "task", "tonumber", "tostring", "unpack",
	"utf8", "warn", "xpcall",
}
