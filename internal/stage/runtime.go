package stage

// Lua fragments shared by the two stages. Every @ROLE@ is replaced with an
// allocated identifier or a generated value by expand. The fragments only
// rely on string, table, math, bit32, setmetatable and either
// loadstring+setfenv or load with an environment argument.

const rootLua = `local @ROOT@=(getfenv and getfenv(1)) or _ENV or _G
`

// Radix-64 decoder. The accumulator never holds more than 14 bits, so the
// arithmetic stays exact in double precision.
const decLua = `local @ALPHA@='ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/'
local @TAB@={}
for @i@=1,64 do @TAB@[@ALPHA@:byte(@i@)]=@i@-1 end
local function @DEC@(@s@)
local @out@,@acc@,@bits@={},0,0
for @i@=1,#@s@ do
local @v@=@TAB@[@s@:byte(@i@)]
if @v@ then
@acc@=@acc@*64+@v@
@bits@=@bits@+6
if @bits@>=8 then
@bits@=@bits@-8
local @p@=2^@bits@
local @c@=math.floor(@acc@/@p@)
@out@[#@out@+1]=string.char(@c@)
@acc@=@acc@-@c@*@p@
end
end
end
return table.concat(@out@)
end
`

// Inverse of the per-literal cipher: subtract the shift, then XOR the key.
const openLua = `local function @OPEN@(@s@,@k@,@sh@)
local @out@={}
for @i@=1,#@s@ do
@out@[@i@]=string.char(bit32.bxor((@s@:byte(@i@)-@sh@)%256,@k@))
end
return table.concat(@out@)
end
`

// Sum32 and the 32-bit multiplicative hash. h*16777619 is split into
// (h%256)*2^24 + h*403 so no intermediate exceeds 2^42.
const digestLua = `local function @SUM@(@s@)
local @n@=0
for @i@=1,#@s@ do @n@=(@n@+@s@:byte(@i@))%4294967296 end
return @n@
end
local function @HASH@(@s@)
local @h@=2166136261
for @i@=1,#@s@ do
@h@=((@h@%256)*16777216+@h@*403)%4294967296
@h@=bit32.bxor(@h@,@s@:byte(@i@))
end
return @h@
end
`

const verifyHeadLua = `local function @VERIFY@(@s@,@len@,@sum@,@hash@,@tag@,@extra@)
local @bad@={}
if #@s@~=@len@ then @bad@[#@bad@+1]='length' end
if @SUM@(@s@)~=@sum@ then @bad@[#@bad@+1]='checksum' end
if @HASH@(@s@)~=@hash@ then @bad@[#@bad@+1]='hash' end
if @extra@ then @bad@[#@bad@+1]=@extra@ end
if #@bad@>0 then
`

const verifyStrictLua = `error(@tag@..' integrity check failed: '..table.concat(@bad@,', ')..' mismatch',0)
`

const verifyLenientLua = `(warn or print)(@tag@..' integrity warning: '..table.concat(@bad@,', ')..' mismatch')
`

const verifyTailLua = `end
end
`

const loadLua = `local function @LOAD@(@src@,@env@,@name@)
if setfenv and loadstring then
local @f@,@e@=loadstring(@src@,@name@)
if @f@ then setfenv(@f@,@env@) end
return @f@,@e@
end
return load(@src@,@name@,'t',@env@)
end
`

// xorshift32 (13, 17, 5) driving Fisher-Yates from the top down.
const permLua = `local function @PERM@(@n@,@s@)
local @out@={}
for @i@=1,@n@ do @out@[@i@]=@i@ end
for @i@=@n@,2,-1 do
@s@=bit32.bxor(@s@,bit32.lshift(@s@,13))
@s@=bit32.bxor(@s@,bit32.rshift(@s@,17))
@s@=bit32.bxor(@s@,bit32.lshift(@s@,5))
local @j@=1+@s@%@i@
@out@[@i@],@out@[@j@]=@out@[@j@],@out@[@i@]
end
return @out@
end
`

const waitLua = `local @WAIT@=(task and task.wait) or function() local @c@=os.clock() while os.clock()-@c@<0.016 do end end
for @i@=1,@DELAY@ do @WAIT@() end
`

const gateOffLua = `local @GATE@=0
`

const gateOnLua = `local @GATE@
do
local @fetch@=__OBF_FETCH or (game and function(@u@) return game:HttpGet(@u@) end)
if not @fetch@ then error('gate unavailable',0) end
local @ok@,@body@=pcall(@fetch@,@URL@)
@GATE@=@ok@ and type(@body@)=='string' and tonumber(@body@:match('"g"%s*:%s*(%d+)'))
if not @GATE@ then error('gate refused',0) end
end
`

const outerBodyLua = `local @t@={}
for @i@=1,#@ORD@ do @t@[@i@]=@P@[@ORD@[@i@]] end
local @RAW@=@OPEN@(@DEC@(table.concat(@t@)),@K@,@SH@)
@VERIFY@(@RAW@,@LEN@,@CSUM@,@HSH@,'stage1')
local @ENV@=setmetatable({@ROOT@=@ROOT@,@DEC@=@DEC@,@OPEN@=@OPEN@,@VERIFY@=@VERIFY@,@LOAD@=@LOAD@,@GATE@=@GATE@@PERMEXPORT@},{__index=@ROOT@})
local @FN@,@ERR@=@LOAD@(@RAW@,@ENV@,'=stage2')
if not @FN@ then error(@ERR@,0) end
return @FN@(...)
end
`

// Memoized literal decoder. Placeholder indices are 0-based.
const litLua = `local @LB@={@LITDATA@}
local @LK@={@LITKEYS@}
local @LS@={@LITSHIFTS@}
local @LC@={}
local function @LIT@(@i@)
local @v@=@LC@[@i@]
if @v@~=nil then return @v@ end
local @b@=@LB@[@i@+1]
if not @b@ then return '' end
@v@=@OPEN@(@DEC@(@b@),@LK@[@i@+1],@LS@[@i@+1])
@LC@[@i@]=@v@
return @v@
end
`

const innerPiecesLua = `local @P2@={@PIECES@}
local @K2@={@KEYS@}
local @S2@={@SHIFTS@}
local @L2@={@LENGTHS@}
local @LEN2@,@CSUM2@,@HSH2@=@DLEN@,@DSUM@,@DHASH@
`

const innerJoinLua = `local @t@,@badc@={},nil
for @i@=1,#@O2@ do
local @j@=@O2@[@i@]
local @p@=@OPEN@(@DEC@(@P2@[@j@]),@KEYEXPR@,@S2@[@j@])
if #@p@~=@L2@[@j@] then @badc@='chunk '..@i@..' length' end
@t@[@i@]=@p@
end
local @FINAL@=table.concat(@t@)
@VERIFY@(@FINAL@,@LEN2@,@CSUM2@,@HSH2@,'stage2',@badc@)
local @FENV@=setmetatable({@LIT@=@LIT@},{__index=@ROOT@,__newindex=@ROOT@})
local @FN2@,@ERR2@=@LOAD@(@FINAL@,@FENV@,'=program')
if not @FN2@ then error(@ERR2@,0) end
return @FN2@(...)
`
