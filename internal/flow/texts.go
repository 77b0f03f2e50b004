package flow

// Canned conversation texts. Copy mirrors the production WhatsApp funnel;
// the wording is part of the product, keep accents and emoji intact.

const (
	menuOptions = "1️⃣ Conhecer nossos planos de IPTV\n" +
		"2️⃣ Testar o serviço gratuitamente\n" +
		"3️⃣ Saber mais sobre como funciona o IPTV\n" +
		"4️⃣ Já testei e quero ativar\n" +
		"5️⃣ Falar com um atendente"

	textWelcome = "Olá! Como posso te ajudar? Responda com o número da opção que deseja:\n\n" +
		menuOptions + "\n\n" +
		"⚠️ Um humano não verá suas mensagens até que uma opção válida do robô seja escolhida."

	textMenuAgain = "Bem vindo de volta ao menu\n\n" + menuOptions

	textMenuInvalid = "Escolha uma opção válida:\n\n" + menuOptions

	textPlansCaption = "📌 Escolha o que deseja fazer agora:\n\n" +
		"1️⃣ Testar o serviço gratuitamente\n" +
		"2️⃣ Escolhi meu plano, quero ativar agora\n" +
		"3️⃣ Saber mais sobre como funciona o IPTV\n\n" +
		"0️⃣ Menu inicial"

	textTrialDevice = "Em qual dispositivo gostaria de realizar o teste?\n\n" +
		"1️⃣ Celular\n2️⃣ TV Box\n3️⃣ Smart TV\n4️⃣ Computador\n\n0️⃣ Menu inicial"

	textTrialDeviceInvalid = "Escolha um dispositivo válido:\n\n" +
		"1️⃣ Celular\n2️⃣ TV Box\n3️⃣ Smart TV\n4️⃣ Computador\n\n0️⃣ Menu inicial"

	textPhoneOS = "Seu celular é:\n\n1️⃣ Android\n2️⃣ iPhone\n\n0️⃣ Menu inicial"

	textPhoneOSInvalid = "Escolha uma opção válida:\n\n1️⃣ Android\n2️⃣ iPhone\n\n0️⃣ Menu inicial"

	textTVBrand = "Qual a marca da sua TV?\n\n" +
		"1️⃣ LG\n2️⃣ Samsung\n3️⃣ Outra com Android\n4️⃣ Outra com Roku\n5️⃣ Não sei se é Roku ou Android\n\n0️⃣ Menu inicial"

	textHowItWorks = "O IPTV é um serviço de streaming que permite assistir a canais de TV ao vivo, " +
		"filmes, séries e novelas pela internet. Você pode acessar uma variedade de canais e programas " +
		"em diferentes dispositivos, como TVs, smartphones e computadores.\n\n0️⃣ Menu inicial"

	textActivateCaption = "📌 Escolha o plano que deseja:\n\n" +
		"1️⃣ Plano CINEMA (R$ 18,00 por mês)\n" +
		"2️⃣ Plano COMPLETO (R$ 20,00 por mês)\n" +
		"3️⃣ Plano DUO (R$ 35,00 por mês)\n\n" +
		"0️⃣ Menu inicial\n\n" +
		"_O plano completo tem acréscimo de 5$ caso seja pago após o vencimento_"

	textHuman = "Digite abaixo o que deseja, a partir de agora um atendente humano irá responder suas mensagens 😊"

	textHandoffEscalated = "Percebi que você prefere conversar 😊 A partir de agora um atendente humano " +
		"irá responder suas mensagens.\n\nDigite 0️⃣ para voltar ao menu automático."

	textThanksReply = "Disponha 🤝"

	textGreetingReply = "Olá! 👋 Responda com o número de uma das opções do menu para eu poder te ajudar.\n\nDigite 0️⃣ para ver o menu."

	textAwayNotice = "No momento estamos ausentes, então o atendimento humano pode demorar um pouco mais que o normal."

	textInstructionsStreamPlayer = "✅ Siga os passos abaixo para configurar:\n\n" +
		"📲 Procura na PlayStore e baixa um aplicativo chamado *IPTV STREAM PLAYER*.\n\n" +
		"📌 Depois, pode abrir, irá aparecer uma tela com 3 botões, você seleciona o primeiro e ele " +
		"irá te direcionar à página onde pede os dados de login."

	textInstructionsSmarters = "✅ Siga os passos abaixo para configurar:\n\n" +
		"1. Baixe o *Smarters Player Lite* na AppStore\n" +
		"2. Abra o app e aceite os termos (Se ele pedir)\n" +
		"3. Selecione *Xtreme Codes* na tela"

	textInstructionsSmartersTV = "✅ Siga os passos abaixo para configurar:\n\n" +
		"▸ Abra a loja de apps da TV (*APP* ou *LG Content Store*)\n" +
		"▸ Instale o *IPTVSmartersPRO*\n" +
		"▸ Abra o app e aceite os termos"

	textInstructionsXCloud = "✅ Siga os passos abaixo para configurar:\n\n" +
		"1️⃣ *Abra* a loja de aplicativos da sua TV\n" +
		"2️⃣ *Procure* pelo aplicativo *xCloud TV* e instale\n" +
		"3️⃣ *Abra* o aplicativo\n\n" +
		"⚠️ *Obs:* Se não encontrar o xCloud TV, me avise que te ajudo a baixar outro app."

	textInstructionsComputer = "🌐 No seu computador, acesse o site: applime.cc"

	textUnknownBrand = "📱 Abre a loja de aplicativos e me manda uma foto da tela, por favor!\n\n" +
		"Um atendente humano vai continuar daqui 😊 Digite 0️⃣ para voltar ao menu."

	textTrialFooter = "Seu teste tem duração de 3h, fique a vontade para testar e conhecer nossos conteúdos 😉"

	textPostTrial = "Depois de testar, me conta o que achou:\n\n" +
		"1️⃣ Gostei, quero ativar um plano\n" +
		"2️⃣ Falar com um atendente\n\n0️⃣ Menu inicial"

	textTrialError = "⚠️ Ocorreu um erro ao tentar obter as informações. Tente novamente em alguns minutos."

	textPaymentDoneFollowup = "Assim que efetuar o pagamento, me envie o comprovante por aqui. " +
		"Um atendente humano irá confirmar sua ativação 😊"

	textCardIntro = "Combinado, você pode efetuar o pagamento com cartão através do link abaixo:"

	textPixIntro = "Combinado, você pode efetuar o pagamento por PIX através da chave pix aleatória abaixo:"

	pixKey = "c366c9e3-fb7c-431f-957e-97287f4f964f"

	textFixturesEmpty = "⚠️ Nenhum jogo foi encontrado ou houve erro ao obter os dados."

	textHelp = "Comandos disponíveis:\n\n" +
		"0️⃣ ou /menu — voltar ao menu inicial\n" +
		"/jogos — jogos de futebol de hoje na TV\n" +
		"/ajuda — esta mensagem"
)

// Price-table and app-screen reference images, resolved against MediaDir.
const (
	mediaPriceTable   = "tabelaprecos.png"
	mediaStreamPlayer = "streamplayer.png"
)

type planInfo struct {
	PriceLabel string
	CardLink   string
}

var planDetails = map[string]planInfo{
	"cinema": {
		PriceLabel: "R$ 18,00",
		CardLink:   "https://pay.infinitepay.io/servico-suportetv/VC1D-MOItUPj43-18,00",
	},
	"completo": {
		PriceLabel: "R$ 20,00",
		CardLink:   "https://pay.infinitepay.io/servico-suportetv/VC1D-cYyPbKeF-20,00",
	},
	"duo": {
		PriceLabel: "R$ 35,00",
		CardLink:   "https://pay.infinitepay.io/servico-suportetv/VC1D-5PscvMd79r-35,00",
	},
}
